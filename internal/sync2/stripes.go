// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package sync2

import (
	"context"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/semaphore"
)

// Stripes is a fixed pool of locks selected by hashing a key. Keys that
// hash to the same stripe share a lock.
type Stripes struct {
	locks []*semaphore.Weighted
}

// NewStripes creates a pool of n locks. n is at least 1.
func NewStripes(n int) *Stripes {
	if n < 1 {
		n = 1
	}
	locks := make([]*semaphore.Weighted, n)
	for i := range locks {
		locks[i] = semaphore.NewWeighted(1)
	}
	return &Stripes{locks: locks}
}

// Len returns the number of stripes.
func (s *Stripes) Len() int { return len(s.locks) }

// Index returns the stripe used for key.
func (s *Stripes) Index(key string) int {
	return int(xxh3.HashString(key) % uint64(len(s.locks)))
}

// Lock acquires the stripe for key, waiting until it is free or ctx is
// done. The returned func releases the stripe.
func (s *Stripes) Lock(ctx context.Context, key string) (unlock func(), err error) {
	lock := s.locks[s.Index(key)]
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { lock.Release(1) }, nil
}
