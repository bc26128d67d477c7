// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storelogger

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/boxc/depositcore/internal/testcontext"
	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/transfer"
)

func TestLogger(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	core, logs := observer.New(zap.DebugLevel)
	store := New(zap.New(core), transfer.NewMemoryRecorder())

	target := pid.New()
	_, ok, err := store.Lookup(ctx, target)
	require.NoError(t, err)
	require.False(t, ok)

	record := transfer.Record{
		Target:      target,
		Destination: &url.URL{Scheme: "file", Path: "/data/a/file"},
		Verified:    true,
	}
	require.NoError(t, store.Record(ctx, record))

	found, ok, err := store.Lookup(ctx, target)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record, found)

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, "Lookup", entries[0].Message)
	require.Equal(t, "Record", entries[1].Message)
	require.Equal(t, true, entries[2].ContextMap()["verified"])
}
