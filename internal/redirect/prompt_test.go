package redirect

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	lines  []string
	err    error
	closed bool
}

func (r *fakeReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", r.err
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func newTestPrompt(t *testing.T, reader *fakeReader) (*PromptSurface, *bytes.Buffer, *Interceptor) {
	t.Helper()
	i, _ := newTestInterceptor(t, "portalauth://auth")
	out := &bytes.Buffer{}
	p := NewPromptSurface(i, out)
	p.newReader = func() (LineReader, error) { return reader, nil }
	return p, out, i
}

func TestPromptSurface_AcceptsPastedRedirect(t *testing.T) {
	reader := &fakeReader{
		lines: []string{
			"",
			"https://www.arcgis.com/home",
			"portalauth://auth",
			"portalauth://auth?code=pasted",
		},
		err: io.EOF,
	}
	p, out, i := newTestPrompt(t, reader)

	require.NoError(t, p.Load(context.Background(), "https://portal/authorize"))
	assert.True(t, reader.closed)

	code, ok, err := i.store.PendingCode(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pasted", code.Code)

	assert.Contains(t, out.String(), "https://portal/authorize")
	assert.Contains(t, out.String(), "does not start with portalauth://auth")
	assert.Contains(t, out.String(), "no code parameter")
}

func TestPromptSurface_Abandoned(t *testing.T) {
	for _, readErr := range []error{io.EOF, readline.ErrInterrupt} {
		p, _, _ := newTestPrompt(t, &fakeReader{err: readErr})
		assert.ErrorIs(t, p.Load(context.Background(), "https://portal/authorize"), ErrAbandoned)
	}
}

func TestPromptSurface_Denied(t *testing.T) {
	p, _, _ := newTestPrompt(t, &fakeReader{lines: []string{"portalauth://auth?error=access_denied"}, err: io.EOF})

	var denied *AuthorizationDeniedError
	assert.ErrorAs(t, p.Load(context.Background(), "https://portal/authorize"), &denied)
}
