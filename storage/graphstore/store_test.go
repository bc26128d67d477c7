// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package graphstore_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boxc/depositcore/internal/testcontext"
	"github.com/boxc/depositcore/pkg/rdf"
	"github.com/boxc/depositcore/storage/graphstore"
)

const graph = "https://repository/content/deposit"

var (
	a    = rdf.IRI("https://repository/content/a")
	b    = rdf.IRI("https://repository/content/b")
	c    = rdf.IRI("https://repository/content/c")
	name = rdf.IRI("http://purl.org/dc/terms/title")
)

func openStore(ctx *testcontext.Context, t *testing.T) *graphstore.Store {
	store, err := graphstore.Open(zap.NewNop(), ctx.Dir("store"), graphstore.Options{})
	require.NoError(t, err)
	return store
}

func TestAddMatchCommit(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := openStore(ctx, t)
	defer ctx.Check(store.Close)

	tx, err := store.BeginWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Add(graph,
		rdf.NewTriple(a, rdf.Contains, b),
		rdf.NewTriple(a, rdf.Contains, c),
		rdf.NewTriple(b, name, rdf.Literal("b's title")),
	))
	require.NoError(t, tx.Commit())
	require.Error(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	rtx, err := store.BeginRead(ctx)
	require.NoError(t, err)
	defer func() { _ = rtx.Rollback() }()

	children, err := rtx.Match(graph, a, rdf.Contains, rdf.Term{})
	require.NoError(t, err)
	require.Len(t, children, 2)

	titles, err := rtx.Match(graph, rdf.Term{}, name, rdf.Term{})
	require.NoError(t, err)
	require.Equal(t, []rdf.Triple{rdf.NewTriple(b, name, rdf.Literal("b's title"))}, titles)

	require.True(t, rtx.HasGraph(graph))
	require.False(t, rtx.HasGraph("other"))
	require.Error(t, rtx.Add(graph, rdf.NewTriple(c, name, rdf.Literal("x"))))
}

func TestRollbackDiscards(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := openStore(ctx, t)
	defer ctx.Check(store.Close)

	tx, err := store.BeginWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Add(graph, rdf.NewTriple(a, rdf.Contains, b)))
	require.NoError(t, tx.Rollback())

	rtx, err := store.BeginRead(ctx)
	require.NoError(t, err)
	model, err := rtx.Model(graph)
	require.NoError(t, err)
	require.Equal(t, 0, model.Len())
	require.NoError(t, rtx.Commit())
}

func TestSingleWriter(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := openStore(ctx, t)
	defer ctx.Check(store.Close)

	first, err := store.BeginWrite(ctx)
	require.NoError(t, err)

	var acquired int32
	ctx.Go(func() error {
		second, err := store.BeginWrite(ctx)
		if err != nil {
			return err
		}
		atomic.StoreInt32(&acquired, 1)
		return second.Commit()
	})

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&acquired))

	// readers are not blocked by the writer
	rtx, err := store.BeginRead(ctx)
	require.NoError(t, err)
	require.NoError(t, rtx.Rollback())

	require.NoError(t, first.Commit())
	ctx.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&acquired))
}

func TestBeginWriteInterrupted(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := openStore(ctx, t)
	defer ctx.Check(store.Close)

	first, err := store.BeginWrite(ctx)
	require.NoError(t, err)
	defer func() { _ = first.Rollback() }()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err = store.BeginWrite(waitCtx)
	require.Error(t, err)
	require.True(t, graphstore.ErrInterrupted.Has(err))
}

func TestCheckpointKeepsWriterSlot(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := openStore(ctx, t)
	defer ctx.Check(store.Close)

	tx, err := store.BeginWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Add(graph, rdf.NewTriple(a, rdf.Contains, b)))
	require.NoError(t, tx.Checkpoint())

	// committed data is visible to readers while the writer continues
	rtx, err := store.BeginRead(ctx)
	require.NoError(t, err)
	model, err := rtx.Model(graph)
	require.NoError(t, err)
	require.Equal(t, 1, model.Len())
	require.NoError(t, rtx.Rollback())

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = store.BeginWrite(waitCtx)
	require.True(t, graphstore.ErrInterrupted.Has(err))

	require.NoError(t, tx.Add(graph, rdf.NewTriple(a, rdf.Contains, c)))
	require.NoError(t, tx.Commit())
}

func TestQueryAndUpdate(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := openStore(ctx, t)
	defer ctx.Check(store.Close)

	tx, err := store.BeginWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Add(graph,
		rdf.NewTriple(a, rdf.Contains, b),
		rdf.NewTriple(a, rdf.Contains, c),
		rdf.NewTriple(b, name, rdf.Literal("bee")),
		rdf.NewTriple(c, name, rdf.Literal("sea")),
	))

	rows, err := tx.Query(graph, graphstore.Select{
		Vars: []string{"title"},
		Where: []graphstore.Pattern{
			graphstore.P(graphstore.T(a), graphstore.T(rdf.Contains), graphstore.V("child")),
			graphstore.P(graphstore.V("child"), graphstore.T(name), graphstore.V("title")),
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Len(t, row, 1)
	}

	deleted, inserted, err := tx.Update(graph, graphstore.Update{
		Delete: []graphstore.Pattern{graphstore.P(graphstore.V("s"), graphstore.T(name), graphstore.V("o"))},
		Insert: []graphstore.Pattern{graphstore.P(graphstore.V("s"), graphstore.T(name), graphstore.T(rdf.Literal("renamed")))},
		Where:  []graphstore.Pattern{graphstore.P(graphstore.V("s"), graphstore.T(name), graphstore.V("o"))},
	})
	require.NoError(t, err)
	require.Equal(t, 2, deleted)
	require.Equal(t, 2, inserted)
	require.NoError(t, tx.Commit())

	rtx, err := store.BeginRead(ctx)
	require.NoError(t, err)
	defer func() { _ = rtx.Rollback() }()
	renamed, err := rtx.Match(graph, rdf.Term{}, name, rdf.Literal("renamed"))
	require.NoError(t, err)
	require.Len(t, renamed, 2)
}

func TestDropGraphAndClose(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := openStore(ctx, t)

	tx, err := store.BeginWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Add(graph, rdf.NewTriple(a, rdf.Contains, b)))
	require.NoError(t, tx.DropGraph(graph))
	require.NoError(t, tx.DropGraph("missing"))
	graphs, err := tx.Graphs()
	require.NoError(t, err)
	require.Empty(t, graphs)
	require.NoError(t, tx.Commit())

	rtx, err := store.BeginRead(ctx)
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- store.Close() }()

	// close waits for the open transaction
	select {
	case <-closed:
		t.Fatal("close returned with an open transaction")
	case <-time.After(50 * time.Millisecond):
	}
	require.True(t, store.Retired())

	_, err = store.BeginRead(ctx)
	require.True(t, graphstore.ErrClosed.Has(err))

	require.NoError(t, rtx.Rollback())
	require.NoError(t, <-closed)
	require.NoError(t, store.Close())
}
