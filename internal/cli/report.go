package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/me/cpsync/internal/engine"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
)

// printSummary writes one block per pass. Failed problem keys are listed
// in red.
func printSummary(w io.Writer, results []*engine.PhaseResult) {
	for i, res := range results {
		title := fmt.Sprintf("%s/%s", res.Platform, res.Handle)
		if len(results) > 1 {
			title += fmt.Sprintf(" (pass %d)", i+1)
		}
		fmt.Fprintln(w, headerStyle.Render(title))
		fmt.Fprintf(w, "  %s  %s  %s\n",
			okStyle.Render(fmt.Sprintf("written %d", res.Written)),
			mutedStyle.Render(fmt.Sprintf("skipped %d", res.Skipped)),
			failStyle.Render(fmt.Sprintf("failed %d", len(res.Failed))),
		)
		if len(res.Failed) > 0 {
			fmt.Fprintln(w, "  "+failStyle.Render("could not download: "+strings.Join(res.Failed, ", ")))
		}
		fmt.Fprintln(w, mutedStyle.Render("  run "+res.RunID+" ended in "+string(res.State)))
	}
}
