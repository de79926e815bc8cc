package spoj

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/me/cpsync/pkg/model"
)

const marker = "textarea"

// ExtractSource recovers the source held in the edit page's textarea by
// scanning lines. The first line containing the marker starts the capture
// after its first '>'; the next line containing the marker ends it.
// Following HTML, a newline directly after the start tag is not content.
func ExtractSource(page string) (string, error) {
	var (
		lines   []string
		started bool
	)
	for _, line := range splitLines(page) {
		if strings.Contains(line, marker) {
			if started {
				break
			}
			started = true
			pos := strings.IndexByte(line, '>')
			if pos < 0 {
				return "", fmt.Errorf("%w: textarea start tag not closed", model.ErrExtraction)
			}
			lines = append(lines, line[pos+1:])
			continue
		}
		if started {
			lines = append(lines, line)
		}
	}
	if !started {
		return "", fmt.Errorf("%w: no textarea on page", model.ErrExtraction)
	}
	if len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	return html.UnescapeString(strings.Join(lines, "\n")), nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
