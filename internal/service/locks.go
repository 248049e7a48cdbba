package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// userLocks serializes ledger read-modify-write cycles per user. Ledgers of
// different users never contend.
type userLocks struct {
	mu    sync.Mutex
	users map[string]*semaphore.Weighted
}

func newUserLocks() *userLocks {
	return &userLocks{users: make(map[string]*semaphore.Weighted)}
}

// acquire blocks until username's lock is held or ctx is done. The returned
// func releases it.
func (l *userLocks) acquire(ctx context.Context, username string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.users[username]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.users[username] = sem
	}
	l.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
