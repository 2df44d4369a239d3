package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StateFileName is the name of the JSON document the file store keeps in
// its directory.
const StateFileName = "state.json"

// FileStore keeps the whole token state in a single JSON document.
//
// SECURITY: the token is stored in plaintext. The following measures are
// the only protection:
//   - The file is created with 0600 permissions (owner read/write only)
//   - The directory is created with 0700 permissions (owner only)
//   - Token values are NEVER logged
//
// Every write replaces the document through a temp file and rename, so the
// token and its expiry always change together, including for readers in
// other processes (for example `portalauth redirect`). The state is re-read
// on every access so those writes are visible immediately.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	path   string
	logger *slog.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithFileLogger sets the logger used for audit events.
func WithFileLogger(logger *slog.Logger) FileStoreOption {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// NewFileStore creates a file store rooted at dir, creating the directory
// if needed.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("token storage directory is required")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}

	s := &FileStore{
		dir:    dir,
		path:   filepath.Join(dir, StateFileName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the location of the state document.
func (s *FileStore) Path() string {
	return s.path
}

// Credential implements Store.
func (s *FileStore) Credential(ctx context.Context) (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return Credential{}, false, err
	}
	cred, ok := rec.credential()
	return cred, ok, nil
}

// PutCredential implements Store.
// SECURITY: Token values are never logged.
func (s *FileStore) PutCredential(ctx context.Context, cred Credential) error {
	if cred.AccessToken == "" {
		return ErrEmptyToken
	}

	err := s.update(func(rec *record) { rec.setCredential(cred) })
	if err != nil {
		s.logger.Warn("SECURITY_AUDIT: OAuth token storage failed",
			"event", "token_store_failed",
			"path", s.path,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to persist token: %w", err)
	}

	s.logger.Info("SECURITY_AUDIT: OAuth token stored",
		"event", "token_stored",
		"path", s.path,
		"expiry", formatExpiry(cred.Expiry),
	)
	return nil
}

// ClearCredential implements Store.
func (s *FileStore) ClearCredential(ctx context.Context) error {
	if err := s.update(func(rec *record) { rec.clearCredential() }); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}

	s.logger.Info("SECURITY_AUDIT: OAuth token deleted",
		"event", "token_deleted",
		"path", s.path,
	)
	return nil
}

// PendingCode implements Store.
func (s *FileStore) PendingCode(ctx context.Context) (PendingCode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return PendingCode{}, false, err
	}
	code, ok := rec.pendingCode()
	return code, ok, nil
}

// PutPendingCode implements Store.
func (s *FileStore) PutPendingCode(ctx context.Context, code PendingCode) error {
	if code.Code == "" {
		return ErrEmptyCode
	}
	if err := s.update(func(rec *record) { rec.setPendingCode(code) }); err != nil {
		return fmt.Errorf("failed to persist authorization code: %w", err)
	}
	return nil
}

// ClearPendingCode implements Store.
func (s *FileStore) ClearPendingCode(ctx context.Context) error {
	if err := s.update(func(rec *record) { rec.clearPendingCode() }); err != nil {
		return fmt.Errorf("failed to clear authorization code: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

// Watch implements Watcher using fsnotify on the storage directory. The
// directory is watched rather than the file because writes replace the file.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	changes := make(chan struct{}, 1)

	go func() {
		defer watcher.Close()
		defer close(changes)

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != StateFileName {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Token store watcher error", "path", s.dir, "error", err.Error())
			}
		}
	}()

	return changes, nil
}

// update applies fn to the current record and writes it back.
func (s *FileStore) update(fn func(rec *record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return err
	}
	fn(&rec)
	return s.write(rec)
}

// read loads the state document. A missing file is an empty state.
// Must be called with s.mu held.
func (s *FileStore) read() (record, error) {
	// #nosec G304 -- path is built from the configured storage directory
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return record{}, nil
	}
	if err != nil {
		return record{}, fmt.Errorf("failed to read token state: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("failed to unmarshal token state: %w", err)
	}
	return rec, nil
}

// write replaces the state document. Must be called with s.mu held.
func (s *FileStore) write(rec record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, StateFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict state file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(time.RFC3339)
}
