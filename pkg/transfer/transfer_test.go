// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package transfer_test

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boxc/depositcore/internal/testcontext"
	"github.com/boxc/depositcore/internal/testrand"
	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/storagelocation"
	"github.com/boxc/depositcore/pkg/transfer"
)

func fileURI(path string) *url.URL {
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
}

func newLocations(ctx *testcontext.Context, t *testing.T, parents storagelocation.ParentMap) *storagelocation.Manager {
	m, err := storagelocation.NewManager(zap.NewNop(), []storagelocation.LocationConfig{
		{ID: "loc1", Name: "One", Type: storagelocation.TypeFilesystem, Base: ctx.Dir("data", "a")},
		{ID: "loc2", Name: "Two", Type: storagelocation.TypeFilesystem, Base: ctx.Dir("data", "b")},
	}, []storagelocation.MappingConfig{
		{ID: pid.RootID, DefaultLocation: "loc1"},
	}, parents)
	require.NoError(t, err)
	return m
}

// countingVerifier counts verifications, keeps what it was given to check
// and can be forced to fail.
type countingVerifier struct {
	mu     sync.Mutex
	calls  int
	fail   bool
	stored []byte
}

func (v *countingVerifier) Verify(ctx context.Context, expected digest.Digest, stored io.Reader) error {
	data, err := ioutil.ReadAll(stored)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.calls++
	v.stored = data
	fail := v.fail
	v.mu.Unlock()
	if fail {
		return transfer.ErrVerification.New("forced mismatch for %s", expected)
	}
	return transfer.DigestVerifier{}.Verify(ctx, expected, bytes.NewReader(data))
}

func TestTransferScenario(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	x := pid.New()
	locations := newLocations(ctx, t, storagelocation.ParentMap{x.ID(): pid.Root()})

	loc, err := locations.GetStorageLocation(ctx, storagelocation.StaticObject{ID: x})
	require.NoError(t, err)
	require.Equal(t, "loc1", loc.ID())

	verifier := &countingVerifier{}
	service := transfer.NewService(zap.NewNop(), transfer.NewMemoryRecorder(), transfer.Options{Verifier: verifier})

	session, err := service.Open(loc)
	require.NoError(t, err)
	defer ctx.Check(session.Close)

	staged := ctx.WriteFile([]byte("hello world"), "staging", "hello.txt")
	target, err := x.WithComponent("hello.txt")
	require.NoError(t, err)

	uri, err := session.Transfer(ctx, target, fileURI(staged))
	require.NoError(t, err)

	base := loc.BaseURI().Path
	require.True(t, strings.HasPrefix(uri.Path, base))
	require.Equal(t, x.HashedPath(pid.HashedPathDepth)+"/"+x.ID()+"/hello.txt", strings.TrimPrefix(uri.Path, base))
	require.True(t, loc.IsValidURI(uri))

	stored, err := ioutil.ReadFile(filepath.FromSlash(uri.Path))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(stored))

	_, err = os.Stat(staged)
	require.True(t, os.IsNotExist(err), "staged file should be deleted")

	// the second call must not touch the filesystem: the staged file is gone
	// and nothing is verified again
	again, err := session.Transfer(ctx, target, fileURI(staged))
	require.NoError(t, err)
	require.Equal(t, uri, again)
	require.Equal(t, 1, verifier.calls)
}

func TestTransferIdempotentSkipsCopy(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	locations := newLocations(ctx, t, nil)
	recorder := transfer.NewMemoryRecorder()
	service := transfer.NewService(zap.NewNop(), recorder, transfer.Options{})

	session, err := service.Open(locations.GetStorageLocationByID("loc1"))
	require.NoError(t, err)
	defer ctx.Check(session.Close)

	target := pid.New()
	first, err := session.Transfer(ctx, target, fileURI(ctx.WriteFile([]byte("v1"), "staging", "v1")))
	require.NoError(t, err)

	// a newer staged copy must not clobber the verified transfer
	newer := ctx.WriteFile([]byte("v2"), "staging", "v2")
	second, err := session.Transfer(ctx, target, fileURI(newer))
	require.NoError(t, err)
	require.Equal(t, first, second)

	stored, err := ioutil.ReadFile(filepath.FromSlash(first.Path))
	require.NoError(t, err)
	require.Equal(t, "v1", string(stored))

	_, err = os.Stat(newer)
	require.NoError(t, err, "skipped transfer must not delete the staged file")

	record, ok, err := recorder.Lookup(ctx, target)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, record.Verified)
	require.Equal(t, digest.FromString("v1"), record.Digest)
}

func TestTransferVerificationFailureRollsBack(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	locations := newLocations(ctx, t, nil)
	loc := locations.GetStorageLocationByID("loc1")
	recorder := transfer.NewMemoryRecorder()
	verifier := &countingVerifier{fail: true}
	service := transfer.NewService(zap.NewNop(), recorder, transfer.Options{Verifier: verifier})

	session, err := service.Open(loc)
	require.NoError(t, err)
	defer ctx.Check(session.Close)

	content := []byte("precious content")
	staged := ctx.WriteFile(content, "staging", "file")
	target := pid.New()

	_, err = session.Transfer(ctx, target, fileURI(staged))
	require.Error(t, err)
	require.True(t, transfer.ErrVerification.Has(err))

	_, err = os.Stat(filepath.FromSlash(loc.StorageURI(target).Path))
	require.True(t, os.IsNotExist(err), "destination must be removed")

	original, err := ioutil.ReadFile(staged)
	require.NoError(t, err)
	require.Equal(t, content, original)

	_, ok, err := recorder.Lookup(ctx, target)
	require.NoError(t, err)
	require.False(t, ok)

	// the deposit is left retryable
	verifier.fail = false
	uri, err := session.Transfer(ctx, target, fileURI(staged))
	require.NoError(t, err)
	require.Equal(t, loc.StorageURI(target), uri)

	// the stored copy is read back for verification
	require.Equal(t, 2, verifier.calls)
	require.Equal(t, content, verifier.stored)
}

func TestDigestVerifierDetectsMismatch(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	stored := func() io.Reader { return strings.NewReader("actual") }
	require.NoError(t, transfer.DigestVerifier{}.Verify(ctx, digest.FromString("actual"), stored()))

	err := transfer.DigestVerifier{}.Verify(ctx, digest.FromString("expected"), stored())
	require.True(t, transfer.ErrVerification.Has(err))

	err = transfer.DigestVerifier{}.Verify(ctx, digest.Digest("bogus"), stored())
	require.Error(t, err)
	require.False(t, transfer.ErrVerification.Has(err))
}

func TestTransferReplaceExisting(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	locations := newLocations(ctx, t, nil)
	recorder := transfer.NewMemoryRecorder()
	service := transfer.NewService(zap.NewNop(), recorder, transfer.Options{})

	session, err := service.Open(locations.GetStorageLocationByID("loc2"))
	require.NoError(t, err)
	defer ctx.Check(session.Close)

	target, err := pid.New().WithComponent("md_descriptive")
	require.NoError(t, err)

	var uris []*url.URL
	for _, content := range []string{"<mods>one</mods>", "<mods>two</mods>"} {
		uri, err := session.TransferReplaceExisting(ctx, target, bytes.NewBufferString(content))
		require.NoError(t, err)
		uris = append(uris, uri)

		stored, err := ioutil.ReadFile(filepath.FromSlash(uri.Path))
		require.NoError(t, err)
		require.Equal(t, content, string(stored))
	}
	require.Equal(t, uris[0], uris[1])

	_, ok, err := recorder.Lookup(ctx, target)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClosedSession(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	locations := newLocations(ctx, t, nil)
	service := transfer.NewService(zap.NewNop(), transfer.NewMemoryRecorder(), transfer.Options{})

	session, err := service.Open(locations.GetStorageLocationByID("loc1"))
	require.NoError(t, err)
	require.NoError(t, session.Close())

	_, err = session.Transfer(ctx, pid.New(), fileURI(ctx.WriteFile([]byte("x"), "x")))
	require.True(t, transfer.ErrClosed.Has(err))

	_, err = service.Open(nil)
	require.Error(t, err)
}

func TestMultiSessionDispatches(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	inherited, assigned := pid.New(), pid.New()
	locations := newLocations(ctx, t, storagelocation.ParentMap{
		inherited.ID(): pid.Root(),
		assigned.ID():  pid.Root(),
	})

	var mu sync.Mutex
	var notified []transfer.Record
	service := transfer.NewService(zap.NewNop(), transfer.NewMemoryRecorder(), transfer.Options{
		Notifier: func(ctx context.Context, record transfer.Record) {
			mu.Lock()
			defer mu.Unlock()
			notified = append(notified, record)
		},
	})

	session := service.OpenMulti(locations, func(target pid.PID) storagelocation.Object {
		if target == assigned {
			return storagelocation.StaticObject{ID: target, LocationID: "loc2"}
		}
		return storagelocation.StaticObject{ID: target}
	})

	uri, err := session.Transfer(ctx, inherited, fileURI(ctx.WriteFile([]byte("a"), "staging", "a")))
	require.NoError(t, err)
	loc, err := locations.GetStorageLocationForURI(uri)
	require.NoError(t, err)
	require.Equal(t, "loc1", loc.ID())

	uri, err = session.Transfer(ctx, assigned, fileURI(ctx.WriteFile([]byte("b"), "staging", "b")))
	require.NoError(t, err)
	loc, err = locations.GetStorageLocationForURI(uri)
	require.NoError(t, err)
	require.Equal(t, "loc2", loc.ID())

	require.Equal(t, []string{"loc1", "loc2"}, session.Locations())
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	_, err = session.Transfer(ctx, inherited, fileURI(ctx.File("staging", "a")))
	require.True(t, transfer.ErrClosed.Has(err))

	service.Wait()
	require.Len(t, notified, 2)
}

func TestTransferLargeBinary(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	locations := newLocations(ctx, t, nil)
	recorder := transfer.NewMemoryRecorder()
	service := transfer.NewService(zap.NewNop(), recorder, transfer.Options{})

	session, err := service.Open(locations.GetStorageLocationByID("loc1"))
	require.NoError(t, err)
	defer ctx.Check(session.Close)

	content := testrand.BytesN(4<<20 + testrand.Intn(1024))
	target := pid.New()
	uri, err := session.Transfer(ctx, target, fileURI(ctx.WriteFile(content, "staging", "large")))
	require.NoError(t, err)

	stored, err := ioutil.ReadFile(filepath.FromSlash(uri.Path))
	require.NoError(t, err)
	require.Equal(t, content, stored)

	record, ok, err := recorder.Lookup(ctx, target)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, digest.FromBytes(content), record.Digest)
}
