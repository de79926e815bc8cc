package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/me/cpsync/pkg/model"
	"golang.org/x/term"
)

// prompter asks the operator for missing settings. When it is not
// interactive every question gets its zero answer.
type prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool

	// readPassword reads a line without echo.
	readPassword func() (string, error)
}

// newPrompter returns a prompter bound to the process terminal. It is
// interactive only when stdin is a TTY.
func newPrompter(out io.Writer) *prompter {
	fd := os.Stdin.Fd()
	interactive := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	p := &prompter{
		in:          bufio.NewReader(os.Stdin),
		out:         out,
		interactive: interactive,
	}
	p.readPassword = func() (string, error) {
		b, err := term.ReadPassword(int(fd))
		fmt.Fprintln(p.out)
		return string(b), err
	}
	return p
}

// await runs read in the background and gives up when ctx is done. The
// abandoned read finishes on its own once a line arrives or stdin closes.
func await(ctx context.Context, read func() (string, error)) (string, error) {
	type answer struct {
		s   string
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		s, err := read()
		ch <- answer{s, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		return a.s, a.err
	}
}

func (p *prompter) line(ctx context.Context, question string) (string, error) {
	if !p.interactive {
		return "", nil
	}
	fmt.Fprint(p.out, question)
	s, err := await(ctx, func() (string, error) { return p.in.ReadString('\n') })
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) password(ctx context.Context, question string) (string, error) {
	if !p.interactive {
		return "", nil
	}
	fmt.Fprint(p.out, question)
	s, err := await(ctx, p.readPassword)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(s), nil
}

// yesNo asks a yes/no question. Anything but y or yes is no, and so is a
// cancelled context.
func (p *prompter) yesNo(ctx context.Context, question string) bool {
	ans, err := p.line(ctx, question+" [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(ans) {
	case "y", "yes":
		return true
	}
	return false
}

// fill prompts for *dst when it is still empty.
func (p *prompter) fill(ctx context.Context, dst *string, question string, secret bool) error {
	if *dst != "" {
		return nil
	}
	var (
		v   string
		err error
	)
	if secret {
		v, err = p.password(ctx, question)
	} else {
		v, err = p.line(ctx, question)
	}
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// ConfirmRepeat asks whether a phase with failures should run again.
func (p *prompter) ConfirmRepeat(ctx context.Context, platform model.Platform, failed []string) bool {
	if !p.interactive {
		return false
	}
	fmt.Fprintf(p.out, "%d %s problem(s) could not be downloaded: %s\n",
		len(failed), platform, strings.Join(failed, ", "))
	return p.yesNo(ctx, "Try again?")
}
