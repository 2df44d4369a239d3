package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore keeps the token state in process memory. State is lost when
// the process exits.
type MemoryStore struct {
	mu          sync.Mutex
	rec         record
	subscribers map[chan struct{}]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Credential implements Store.
func (s *MemoryStore) Credential(ctx context.Context) (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.rec.credential()
	return cred, ok, nil
}

// PutCredential implements Store.
func (s *MemoryStore) PutCredential(ctx context.Context, cred Credential) error {
	if cred.AccessToken == "" {
		return ErrEmptyToken
	}
	s.update(func(rec *record) { rec.setCredential(cred) })
	return nil
}

// ClearCredential implements Store.
func (s *MemoryStore) ClearCredential(ctx context.Context) error {
	s.update(func(rec *record) { rec.clearCredential() })
	return nil
}

// PendingCode implements Store.
func (s *MemoryStore) PendingCode(ctx context.Context) (PendingCode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.rec.pendingCode()
	return code, ok, nil
}

// PutPendingCode implements Store.
func (s *MemoryStore) PutPendingCode(ctx context.Context, code PendingCode) error {
	if code.Code == "" {
		return ErrEmptyCode
	}
	s.update(func(rec *record) { rec.setPendingCode(code) })
	return nil
}

// ClearPendingCode implements Store.
func (s *MemoryStore) ClearPendingCode(ctx context.Context) error {
	s.update(func(rec *record) { rec.clearPendingCode() })
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// Watch implements Watcher.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

func (s *MemoryStore) update(fn func(rec *record)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.rec)

	for ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
