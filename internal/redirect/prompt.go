package redirect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/chzyer/readline"
)

// LineReader reads one line of user input. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// PromptSurface completes authorization without a browser on this machine:
// the user opens the URL on any device and pastes back the address the
// portal redirected to. The pasted URL goes through the same Interceptor as
// every other strategy.
type PromptSurface struct {
	interceptor *Interceptor
	out         io.Writer
	newReader   func() (LineReader, error)
}

// NewPromptSurface creates a prompt writing instructions to out and reading
// from the terminal.
func NewPromptSurface(interceptor *Interceptor, out io.Writer) *PromptSurface {
	return &PromptSurface{
		interceptor: interceptor,
		out:         out,
		newReader: func() (LineReader, error) {
			return readline.NewEx(&readline.Config{
				Prompt:          "redirect URL> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdout:          out,
			})
		},
	}
}

// Load implements Surface.
func (p *PromptSurface) Load(ctx context.Context, authURL string) error {
	rl, err := p.newReader()
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(p.out, "\nNo browser is available. Open this URL on any device and sign in:\n\n  %s\n\n", authURL)
	fmt.Fprintf(p.out, "Your browser will then fail to open %s. Copy the full address from its location bar and paste it here.\n\n", p.interceptor.RedirectURI())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return ErrAbandoned
		}
		if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		target, err := url.Parse(input)
		if err != nil {
			fmt.Fprintf(p.out, "Not a URL: %v\n", err)
			continue
		}

		decision, err := p.interceptor.Intercept(ctx, target)
		if decision == PassThrough {
			fmt.Fprintf(p.out, "That address does not start with %s, try again.\n", p.interceptor.RedirectURI())
			continue
		}
		if errors.Is(err, ErrMissingCode) {
			fmt.Fprintln(p.out, "That address has no code parameter, try again.")
			continue
		}
		return err
	}
}
