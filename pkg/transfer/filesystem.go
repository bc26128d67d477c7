// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package transfer

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/storagelocation"
	"github.com/boxc/depositcore/storage/filestore"
)

// filesystemSession transfers into a FilesystemLocation.
type filesystemSession struct {
	service  *Service
	log      *zap.Logger
	location *storagelocation.FilesystemLocation
	store    *filestore.Store

	mu     sync.Mutex
	closed bool
}

func newFilesystemSession(service *Service, location *storagelocation.FilesystemLocation) (*filesystemSession, error) {
	store, err := filestore.NewAt(location.Root())
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &filesystemSession{
		service:  service,
		log:      service.log.Named(location.ID()),
		location: location,
		store:    store,
	}, nil
}

func (session *filesystemSession) checkOpen() error {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return ErrClosed.New("%s", session.location.ID())
	}
	return nil
}

// stagedPath returns the local path of a staged file URI.
func stagedPath(source *url.URL) (string, error) {
	if source == nil || (source.Scheme != "" && source.Scheme != "file") || source.Path == "" {
		return "", Error.New("unsupported staging URI %v", source)
	}
	return filepath.FromSlash(source.Path), nil
}

// write copies content into the blob for target and returns the
// destination, the blob path inside the store, the number of bytes written
// and the digest of what was read.
func (session *filesystemSession) write(ctx context.Context, target pid.PID, content io.Reader) (_ *url.URL, rel string, size int64, _ digest.Digest, err error) {
	dest := session.location.StorageURI(target)
	rel, err = session.location.RelativePath(dest)
	if err != nil {
		return nil, "", 0, "", Error.Wrap(err)
	}

	writer, err := session.store.Create(ctx, rel)
	if err != nil {
		return nil, "", 0, "", Error.Wrap(err)
	}

	digester := digest.Canonical.Digester()
	if _, err := io.Copy(writer, io.TeeReader(content, digester.Hash())); err != nil {
		return nil, "", 0, "", Error.Wrap(errs.Combine(err, writer.Cancel()))
	}
	size, err = writer.Size()
	if err != nil {
		return nil, "", 0, "", Error.Wrap(errs.Combine(err, writer.Cancel()))
	}
	if err := writer.Commit(); err != nil {
		return nil, "", 0, "", Error.Wrap(err)
	}
	return dest, rel, size, digester.Digest(), nil
}

// verify reads the stored blob back and checks its size and digest,
// deleting it when it does not match.
func (session *filesystemSession) verify(ctx context.Context, rel string, size int64, expected digest.Digest) error {
	verifyErr := session.check(ctx, rel, size, expected)
	if verifyErr == nil {
		return nil
	}
	if ErrVerification.Has(verifyErr) {
		mon.Counter("transfer_verification_failures").Inc(1)
	}
	return errs.Combine(verifyErr, session.store.Delete(ctx, rel))
}

func (session *filesystemSession) check(ctx context.Context, rel string, size int64, expected digest.Digest) (err error) {
	blob, err := session.store.Open(ctx, rel)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(blob.Close())) }()

	stored, err := blob.Size()
	if err != nil {
		return Error.Wrap(err)
	}
	if stored != size {
		return ErrVerification.New("stored %d bytes of %s, wrote %d", stored, rel, size)
	}
	return session.service.verifier.Verify(ctx, expected, blob)
}

// Transfer implements Session.
func (session *filesystemSession) Transfer(ctx context.Context, target pid.PID, source *url.URL) (_ *url.URL, err error) {
	defer mon.Task()(&ctx)(&err)
	if err := session.checkOpen(); err != nil {
		return nil, err
	}

	previous, ok, err := session.service.recorder.Lookup(ctx, target)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if ok && previous.Verified && previous.Destination != nil {
		mon.Counter("transfers_skipped").Inc(1)
		session.log.Debug("binary already transferred",
			zap.Stringer("target", target),
			zap.Stringer("destination", previous.Destination))
		return previous.Destination, nil
	}

	sourcePath, err := stagedPath(source)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(sourcePath)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	dest, rel, size, sum, err := session.write(ctx, target, file)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	if err := session.verify(ctx, rel, size, sum); err != nil {
		return nil, err
	}

	record := Record{
		Target:      target,
		Source:      source,
		Destination: dest,
		Digest:      sum,
		Verified:    true,
	}
	// the outcome is recorded before the staged file goes away so that a
	// failure in between still leaves a resumable deposit
	if err := session.service.recorder.Record(ctx, record); err != nil {
		return nil, Error.Wrap(err)
	}
	if err := os.Remove(sourcePath); err != nil && !os.IsNotExist(err) {
		session.log.Warn("failed to delete staged file", zap.String("path", sourcePath), zap.Error(err))
	}

	mon.Counter("transfers_completed").Inc(1)
	session.log.Debug("transferred binary",
		zap.Stringer("target", target),
		zap.Stringer("destination", dest),
		zap.Int64("bytes", size),
		zap.String("digest", sum.String()))
	session.service.notify(record)
	return dest, nil
}

// TransferReplaceExisting implements Session.
func (session *filesystemSession) TransferReplaceExisting(ctx context.Context, target pid.PID, content io.Reader) (_ *url.URL, err error) {
	defer mon.Task()(&ctx)(&err)
	if err := session.checkOpen(); err != nil {
		return nil, err
	}

	dest, rel, size, sum, err := session.write(ctx, target, content)
	if err != nil {
		return nil, err
	}
	if err := session.verify(ctx, rel, size, sum); err != nil {
		return nil, err
	}
	session.log.Debug("replaced binary",
		zap.Stringer("target", target),
		zap.Stringer("destination", dest),
		zap.Int64("bytes", size))
	return dest, nil
}

// Close implements Session.
func (session *filesystemSession) Close() error {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.closed = true
	return nil
}
