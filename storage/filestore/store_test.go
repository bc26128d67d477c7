// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package filestore_test

import (
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boxc/depositcore/internal/testcontext"
	"github.com/boxc/depositcore/storage/filestore"
)

func TestStoreLoad(t *testing.T) {
	const blobSize = 8 << 10
	const repeatCount = 16

	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store, err := filestore.NewAt(ctx.Dir("store"))
	require.NoError(t, err)

	data := make([]byte, blobSize)
	_, _ = rand.Read(data)

	var paths []string
	for i := 0; i < repeatCount; i++ {
		path := filepath.Join("ab", strconv.Itoa(i%4), strconv.Itoa(i))
		paths = append(paths, path)

		writer, err := store.Create(ctx, path)
		require.NoError(t, err)

		n, err := writer.Write(data)
		require.NoError(t, err)
		require.Equal(t, len(data), n)

		size, err := writer.Size()
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), size)

		// not visible before commit
		_, err = store.Open(ctx, path)
		require.True(t, os.IsNotExist(err))

		require.NoError(t, writer.Commit())
		require.Error(t, writer.Commit())
	}

	for _, path := range paths {
		reader, err := store.Open(ctx, path)
		require.NoError(t, err)

		size, err := reader.Size()
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), size)

		result, err := ioutil.ReadAll(reader)
		require.NoError(t, err)
		require.NoError(t, reader.Close())
		require.Equal(t, data, result)
	}

	for _, path := range paths {
		require.NoError(t, store.Delete(ctx, path))
		require.NoError(t, store.Delete(ctx, path))

		_, err := store.Open(ctx, path)
		require.True(t, os.IsNotExist(err))
	}
}

func TestCancelAndReplace(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store, err := filestore.NewAt(ctx.Dir("store"))
	require.NoError(t, err)

	writer, err := store.Create(ctx, "a/b")
	require.NoError(t, err)
	_, err = writer.Write([]byte("discarded"))
	require.NoError(t, err)
	require.NoError(t, writer.Cancel())
	require.NoError(t, writer.Cancel())

	_, err = store.Open(ctx, "a/b")
	require.True(t, os.IsNotExist(err))

	for _, content := range []string{"first", "second"} {
		writer, err := store.Create(ctx, "a/b")
		require.NoError(t, err)
		_, err = writer.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, writer.Commit())
	}

	path, err := store.Path("a/b")
	require.NoError(t, err)
	result, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(result))

	// no temporary files are left behind
	leftovers, err := ioutil.ReadDir(filepath.Join(store.Root(), ".tmp"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestInvalidPaths(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store, err := filestore.NewAt(ctx.Dir("store"))
	require.NoError(t, err)

	for _, path := range []string{"", ".", "..", "../escape", "/abs", ".tmp/x", "a/../../b"} {
		_, err := store.Create(ctx, path)
		require.True(t, filestore.ErrInvalidPath.Has(err), path)
	}
}
