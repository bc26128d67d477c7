// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package sync2_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boxc/depositcore/internal/sync2"
	"github.com/boxc/depositcore/internal/testcontext"
)

func TestCycleTriggerAndStop(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	var count int64
	cycle := sync2.NewCycle(time.Hour)
	ctx.Go(func() error {
		return cycle.Run(ctx, func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	})

	cycle.TriggerWait()
	cycle.TriggerWait()
	require.Equal(t, int64(2), atomic.LoadInt64(&count))

	cycle.Stop()
	ctx.Wait()

	// no-ops once stopped
	cycle.TriggerWait()
	cycle.Stop()
	require.Equal(t, int64(2), atomic.LoadInt64(&count))
}

func TestCycleStopBeforeRun(t *testing.T) {
	cycle := sync2.NewCycle(time.Millisecond)
	cycle.Stop()

	err := cycle.Run(context.Background(), func(ctx context.Context) error {
		return errors.New("must not run")
	})
	require.NoError(t, err)
}

func TestCycleStopsOnError(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	failure := errors.New("failure")
	cycle := sync2.NewCycle(time.Millisecond)
	err := cycle.Run(ctx, func(ctx context.Context) error {
		return failure
	})
	require.Equal(t, failure, err)
}
