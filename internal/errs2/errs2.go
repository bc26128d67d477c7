// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package errs2 collects error helpers shared by depositcore packages.
package errs2

import (
	"context"

	"github.com/zeebo/errs"
	"golang.org/x/sync/semaphore"
)

// IsCanceled returns whether err was caused by a canceled or expired
// context, looking through errs classes and wrapping.
func IsCanceled(err error) bool {
	return errs.IsFunc(err, func(err error) bool {
		return err == context.Canceled || err == context.DeadlineExceeded
	})
}

// IgnoreCanceled returns nil for cancellation errors and err otherwise.
func IgnoreCanceled(err error) error {
	if IsCanceled(err) {
		return nil
	}
	return err
}

// Group runs functions concurrently, at most limit at a time when limit is
// positive, and collects all of their errors.
type Group struct {
	limit *semaphore.Weighted
	errs  chan error
	count int
}

// NewGroup creates a group running at most limit functions at once.
func NewGroup(limit int) *Group {
	group := &Group{}
	if limit > 0 {
		group.limit = semaphore.NewWeighted(int64(limit))
	}
	return group
}

// Go runs fn in a new goroutine.
func (group *Group) Go(fn func() error) {
	if group.errs == nil {
		group.errs = make(chan error, 16)
	}
	group.count++
	go func() {
		if group.limit != nil {
			_ = group.limit.Acquire(context.Background(), 1)
			defer group.limit.Release(1)
		}
		group.errs <- fn()
	}()
}

// Wait waits for all functions and returns their non-nil errors.
func (group *Group) Wait() []error {
	var all []error
	for ; group.count > 0; group.count-- {
		if err := <-group.errs; err != nil {
			all = append(all, err)
		}
	}
	return all
}
