package tokenstore

import (
	"context"
	"time"
)

// DefaultPollInterval is used by WaitForPendingCode when the caller passes a
// non-positive interval.
const DefaultPollInterval = time.Second

// WaitForPendingCode blocks until the store holds a pending authorization
// code or ctx is done. Stores implementing Watcher wake the wait on change;
// polling at interval is kept as a fallback for missed events.
func WaitForPendingCode(ctx context.Context, store Store, interval time.Duration) (PendingCode, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if code, ok, err := store.PendingCode(ctx); err != nil {
		return PendingCode{}, err
	} else if ok {
		return code, nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var changes <-chan struct{}
	if w, ok := store.(Watcher); ok {
		// A failed watch degrades to polling.
		if ch, err := w.Watch(watchCtx); err == nil {
			changes = ch
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return PendingCode{}, ctx.Err()
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
		case <-ticker.C:
		}

		code, ok, err := store.PendingCode(ctx)
		if err != nil {
			return PendingCode{}, err
		}
		if ok {
			return code, nil
		}
	}
}
