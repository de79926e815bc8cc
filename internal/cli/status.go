package cli

import (
	"fmt"
	"strings"

	"github.com/me/cpsync/internal/layout"
	"github.com/me/cpsync/internal/ledger"
	"github.com/me/cpsync/pkg/model"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status [platform handle]",
		Short: "Show the local ledger of each handle",
		Long: "Print how many problems each handle has downloaded and which ones failed " +
			"in the last session. Without arguments the configured handles are shown.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 args, received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputDir = output
			}
			cfg.Normalize()

			type target struct {
				platform model.Platform
				handle   string
			}
			var targets []target
			if len(args) == 2 {
				platform, err := model.ParsePlatform(args[0])
				if err != nil {
					return err
				}
				targets = append(targets, target{platform, strings.ToLower(args[1])})
			} else {
				if cfg.Codeforces.Enabled && cfg.Codeforces.Handle != "" {
					targets = append(targets, target{model.PlatformCodeforces, cfg.Codeforces.Handle})
				}
				if cfg.SPOJ.Enabled && cfg.SPOJ.Handle != "" {
					targets = append(targets, target{model.PlatformSPOJ, cfg.SPOJ.Handle})
				}
			}
			if len(targets) == 0 {
				return fmt.Errorf("no handle configured; pass <platform> <handle>")
			}

			out := cmd.OutOrStdout()
			for _, t := range targets {
				dir := layout.HandleDir(cfg.OutputDir, t.platform, t.handle)
				downloaded, err := ledger.ReadDownloaded(dir)
				if err != nil {
					return err
				}
				failed, err := ledger.ReadErrors(dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s/%s: %d downloaded, %d failed\n", t.platform, t.handle, len(downloaded), len(failed))
				if len(failed) > 0 {
					fmt.Fprintln(out, "  "+failStyle.Render("failed: "+strings.Join(failed, ", ")))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "Root folder of the downloaded tree")
	return cmd
}
