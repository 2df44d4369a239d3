package redirect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Browser hands URLs to the platform's default handler. It supports Linux,
// macOS and Windows.
type Browser struct {
	goos     string
	getenv   func(string) string
	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
}

// NewBrowser creates a Browser for the current platform.
func NewBrowser() *Browser {
	return &Browser{
		goos:     runtime.GOOS,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		start:    startDetached,
	}
}

// Open launches the handler for url without waiting for it to exit.
// It returns an error wrapping ErrNoHandlerAvailable when the platform has
// no handler able to show the page.
func (b *Browser) Open(ctx context.Context, url string) error {
	name, args, err := b.command(url)
	if err != nil {
		return err
	}

	if _, err := b.lookPath(name); err != nil {
		return fmt.Errorf("%w: %s not found", ErrNoHandlerAvailable, name)
	}

	if err := b.start(name, args...); err != nil {
		return fmt.Errorf("%w: failed to open browser: %v", ErrNoHandlerAvailable, err)
	}
	return nil
}

// command returns the handler invocation for url.
func (b *Browser) command(url string) (string, []string, error) {
	if custom := b.getenv("BROWSER"); custom != "" {
		return custom, []string{url}, nil
	}

	switch b.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		// Without a display xdg-open falls back to terminal browsers or
		// fails outright.
		if b.getenv("DISPLAY") == "" && b.getenv("WAYLAND_DISPLAY") == "" {
			return "", nil, fmt.Errorf("%w: no graphical display", ErrNoHandlerAvailable)
		}
		return "xdg-open", []string{url}, nil
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		// cmd /c start would interpret '&' in the query string.
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("%w: unsupported platform %s", ErrNoHandlerAvailable, b.goos)
	}
}

// startDetached starts the command but doesn't wait for it to complete.
func startDetached(name string, args ...string) error {
	// #nosec G204 -- the handler is fixed per platform or chosen by $BROWSER
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
