// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package transfer moves staged binaries into storage locations. Every copy
// is verified before the staged file is deleted, and completed transfers are
// recorded so an interrupted deposit can be resumed without copying again.
package transfer

import (
	"context"
	"io"
	"net/url"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/storagelocation"
)

var mon = monkit.Package()

var (
	// Error is the default transfer error class
	Error = errs.Class("transfer error")
	// ErrVerification is returned when a copy does not match its source
	ErrVerification = errs.Class("transfer verification failed")
	// ErrClosed is returned when using a closed session
	ErrClosed = errs.Class("transfer session closed")
)

// Record is the outcome of transferring one binary.
type Record struct {
	Target      pid.PID
	Source      *url.URL
	Destination *url.URL
	Digest      digest.Digest
	Verified    bool
}

// Recorder persists transfer outcomes. A recorded, verified destination
// means the binary must not be copied again.
type Recorder interface {
	Lookup(ctx context.Context, target pid.PID) (_ Record, ok bool, err error)
	Record(ctx context.Context, record Record) error
}

// Notifier is told about every completed transfer. It is called in its own
// goroutine and cannot fail the transfer.
type Notifier func(ctx context.Context, record Record)

// Session copies binaries into storage. Sessions must be closed.
type Session interface {
	// Transfer moves the staged file at source into storage for target
	// unless a verified transfer is already recorded, and returns the
	// storage URI.
	Transfer(ctx context.Context, target pid.PID, source *url.URL) (*url.URL, error)
	// TransferReplaceExisting writes content to the storage URI of target,
	// overwriting whatever is stored there.
	TransferReplaceExisting(ctx context.Context, target pid.PID, content io.Reader) (*url.URL, error)
	// Close ends the session. Completed transfers are kept.
	Close() error
}

// Options configures a Service.
type Options struct {
	// Verifier checks copies; DigestVerifier when nil.
	Verifier Verifier
	// Notifier is optional.
	Notifier Notifier
}

// Service opens transfer sessions.
type Service struct {
	log      *zap.Logger
	recorder Recorder
	verifier Verifier
	notifier Notifier

	notifications sync.WaitGroup
}

// NewService creates a transfer service recording outcomes in recorder.
func NewService(log *zap.Logger, recorder Recorder, opts Options) *Service {
	if opts.Verifier == nil {
		opts.Verifier = DigestVerifier{}
	}
	return &Service{
		log:      log,
		recorder: recorder,
		verifier: opts.Verifier,
		notifier: opts.Notifier,
	}
}

// Open opens a session bound to one location.
func (service *Service) Open(loc storagelocation.StorageLocation) (Session, error) {
	switch loc := loc.(type) {
	case *storagelocation.FilesystemLocation:
		return newFilesystemSession(service, loc)
	case nil:
		return nil, Error.New("no storage location")
	default:
		return nil, Error.New("unsupported storage location type %q", loc.Type())
	}
}

// Wait waits until all pending notifications were delivered.
func (service *Service) Wait() {
	service.notifications.Wait()
}

func (service *Service) notify(record Record) {
	if service.notifier == nil {
		return
	}
	service.notifications.Add(1)
	go func() {
		defer service.notifications.Done()
		service.notifier(context.Background(), record)
	}()
}
