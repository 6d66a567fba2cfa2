package modules

import (
	"context"
	"sync"

	"emperror.dev/errors"
)

// slugLocker serialises work per module slug. Each slug gets a one slot
// channel which is dropped again once nobody holds or waits for it.
type slugLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newSlugLocker() *slugLocker {
	return &slugLocker{slots: make(map[string]*slot)}
}

// Acquire blocks until the lock for slug is held or ctx is done. The returned
// function releases the lock and must be called exactly once.
func (l *slugLocker) Acquire(ctx context.Context, slug string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[slug]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[slug] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			l.unref(slug, s)
		}, nil
	case <-ctx.Done():
		l.unref(slug, s)
		return nil, errors.WrapIf(ctx.Err(), "modules: timed out waiting for install lock")
	}
}

func (l *slugLocker) unref(slug string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, slug)
	}
}
