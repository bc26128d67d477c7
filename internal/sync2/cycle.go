// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package sync2

import (
	"context"
	"sync"
	"time"
)

// Cycle implements a controllable recurring event.
type Cycle struct {
	interval time.Duration

	init     sync.Once
	stopOnce sync.Once
	control  chan chan struct{}
	stopping chan struct{}
}

// NewCycle creates a new cycle with the specified interval.
func NewCycle(interval time.Duration) *Cycle {
	return &Cycle{interval: interval}
}

func (cycle *Cycle) initialize() {
	cycle.init.Do(func() {
		cycle.control = make(chan chan struct{})
		cycle.stopping = make(chan struct{})
	})
}

// Run calls fn every interval until Stop is called, ctx is canceled or fn
// fails.
func (cycle *Cycle) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	cycle.initialize()

	ticker := time.NewTicker(cycle.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				return err
			}

		case done := <-cycle.control:
			err := fn(ctx)
			close(done)
			if err != nil {
				return err
			}

		case <-cycle.stopping:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop stops the cycle permanently. It may be called before Run and more
// than once.
func (cycle *Cycle) Stop() {
	cycle.initialize()
	cycle.stopOnce.Do(func() { close(cycle.stopping) })
}

// TriggerWait runs fn once more and waits for it to complete. It returns
// immediately when the cycle is stopped.
func (cycle *Cycle) TriggerWait() {
	cycle.initialize()
	done := make(chan struct{})
	select {
	case cycle.control <- done:
	case <-cycle.stopping:
		return
	}
	<-done
}
