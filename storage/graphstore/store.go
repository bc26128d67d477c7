// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package graphstore implements a transactional triple store backed by a
// single bolt database. Every named graph is a top-level bucket.
package graphstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/errs"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"
)

var mon = monkit.Package()

var (
	// Error is the default graphstore error class
	Error = errs.Class("graphstore error")
	// ErrClosed is returned when using a closed or retired store
	ErrClosed = errs.Class("graphstore closed")
	// ErrInterrupted is returned when waiting for a transaction was canceled
	ErrInterrupted = errs.Class("graphstore interrupted")
	// ErrTxDone is returned when using a finished transaction
	ErrTxDone = errs.Class("transaction done")
)

const (
	// FileName is the name of the database file inside a store directory.
	FileName = "graph.db"

	// fileMode sets permissions so owner can read and write
	fileMode = 0600

	defaultOpenTimeout = 1 * time.Second
)

// Options configures how a store is opened.
type Options struct {
	// OpenTimeout bounds the wait for the database file lock.
	OpenTimeout time.Duration
}

// Store is an open graph database. It permits any number of concurrent read
// transactions and a single write transaction at a time.
type Store struct {
	log  *zap.Logger
	db   *bolt.DB
	Path string

	writer *semaphore.Weighted

	mu      sync.Mutex
	retired bool
	active  sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the store inside dir.
func Open(log *zap.Logger, dir string, opts Options) (*Store, error) {
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, Error.Wrap(err)
	}

	path := filepath.Join(dir, FileName)
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: opts.OpenTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	log.Debug("opened graph store", zap.String("path", path))

	return &Store{
		log:    log,
		db:     db,
		Path:   path,
		writer: semaphore.NewWeighted(1),
	}, nil
}

// BeginRead starts a read transaction that sees the last committed state.
func (s *Store) BeginRead(ctx context.Context) (*Tx, error) {
	lease, err := s.Lease()
	if err != nil {
		return nil, err
	}
	return lease.BeginRead(ctx)
}

// BeginWrite starts a write transaction, waiting until no other write
// transaction is open on the store or ctx is canceled.
func (s *Store) BeginWrite(ctx context.Context) (*Tx, error) {
	lease, err := s.Lease()
	if err != nil {
		return nil, err
	}
	return lease.BeginWrite(ctx)
}

// Lease pins the store open for one transaction. The store cannot finish
// closing while a lease or a transaction begun from it is outstanding.
func (s *Store) Lease() (*Lease, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	return &Lease{store: s}, nil
}

// Lease is a claim on an open store that turns into exactly one
// transaction, or is released.
type Lease struct {
	store *Store
	used  bool
}

// BeginRead starts a read transaction using the lease.
func (l *Lease) BeginRead(ctx context.Context) (_ *Tx, err error) {
	defer mon.Task()(&ctx)(&err)
	if l.used {
		return nil, Error.New("lease already used")
	}
	l.used = true

	tx, err := l.store.db.Begin(false)
	if err != nil {
		l.store.active.Done()
		return nil, Error.Wrap(err)
	}
	return &Tx{store: l.store, tx: tx}, nil
}

// BeginWrite starts a write transaction using the lease, waiting for the
// writer slot until ctx is done.
func (l *Lease) BeginWrite(ctx context.Context) (_ *Tx, err error) {
	defer mon.Task()(&ctx)(&err)
	if l.used {
		return nil, Error.New("lease already used")
	}
	l.used = true

	s := l.store
	if err := s.writer.Acquire(ctx, 1); err != nil {
		s.active.Done()
		return nil, ErrInterrupted.Wrap(err)
	}
	tx, err := s.db.Begin(true)
	if err != nil {
		s.writer.Release(1)
		s.active.Done()
		return nil, Error.Wrap(err)
	}
	return &Tx{store: s, tx: tx, writable: true}, nil
}

// Release gives the lease back without starting a transaction.
func (l *Lease) Release() {
	if l.used {
		return
	}
	l.used = true
	l.store.active.Done()
}

func (s *Store) enter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return ErrClosed.New("%s", s.Path)
	}
	s.active.Add(1)
	return nil
}

// Retire stops the store from accepting new transactions. Transactions that
// are already open may still finish.
func (s *Store) Retire() {
	s.mu.Lock()
	s.retired = true
	s.mu.Unlock()
}

// Retired returns whether the store no longer accepts transactions.
func (s *Store) Retired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retired
}

// Close retires the store, waits for open transactions to finish and
// closes the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.Retire()
		s.active.Wait()
		s.closeErr = Error.Wrap(s.db.Close())
		s.log.Debug("closed graph store", zap.String("path", s.Path))
	})
	return s.closeErr
}
