package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"

	"portalauth/internal/app"
	"portalauth/internal/challenge"
	"portalauth/internal/config"
	"portalauth/pkg/logging"
)

// loadConfig loads the configuration and initialises logging. The
// --log-level flag overrides the configured level.
func loadConfig() (config.PortalAuthConfig, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logging.InitForCLI(logging.ParseLevel(level), os.Stderr)

	return cfg, nil
}

// newSession loads the configuration and builds a session writing
// interactive output to out.
func newSession(ctx context.Context, out io.Writer, quiet bool, opts ...app.SessionOption) (*app.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	base := []app.SessionOption{
		app.WithOutput(out),
		app.WithPrompt(true),
		app.WithNotifier(newCLINotifier(os.Stderr)),
	}
	if !quiet {
		base = append(base, app.WithWaitIndicator(waitSpinner(out)))
	}

	return app.NewSession(ctx, cfg, append(base, opts...)...)
}

// waitSpinner returns an indicator shown while waiting for the redirect.
func waitSpinner(out io.Writer) func() func() {
	return func() func() {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
		s.Suffix = " Waiting for authorization in your browser..."
		s.Start()
		return s.Stop
	}
}

// cliNotifier prints transient failure messages from the resolver.
type cliNotifier struct {
	out io.Writer
}

func newCLINotifier(out io.Writer) challenge.Notifier {
	return &cliNotifier{out: out}
}

// Notify implements challenge.Notifier.
func (n *cliNotifier) Notify(message string) {
	fmt.Fprintf(n.out, "%s %s\n", text.FgYellow.Sprint("⚠"), message)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiry describes expiry relative to now.
func formatExpiry(expiry, now time.Time) string {
	if expiry.IsZero() {
		return "never"
	}
	remaining := expiry.Sub(now)
	if remaining >= 0 {
		return "in " + formatDuration(remaining)
	}
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(-remaining))
}
