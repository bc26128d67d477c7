// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package depositmodel gives deposit jobs transactional access to the
// private graph of each deposit. Graph stores are opened lazily, cached
// while in use and closed once idle.
package depositmodel

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/boxc/depositcore/internal/errs2"
	"github.com/boxc/depositcore/internal/sync2"
	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/rdf"
	"github.com/boxc/depositcore/storage/graphstore"
)

var mon = monkit.Package()

var (
	// Error is the default depositmodel error class
	Error = errs.Class("depositmodel error")
	// ErrInterrupted is returned when waiting for a lock or a transaction
	// was canceled through the context.
	ErrInterrupted = errs.Class("interrupted")
)

// Config configures the deposit model manager.
type Config struct {
	Dir         string        `help:"directory holding one graph store per deposit" default:"$CONFDIR/deposits"`
	Stripes     int           `help:"number of stripe locks guarding graph store handles" default:"5"`
	IdleTimeout time.Duration `help:"how long an unused graph store stays open; transactions must be shorter" default:"15m0s"`
	OpenTimeout time.Duration `help:"how long to wait for the file lock when opening a graph store" default:"10s"`
}

// Manager owns the open graph stores of all deposits in the process.
type Manager struct {
	log     *zap.Logger
	config  Config
	stripes *sync2.Stripes
	stores  *cache.Cache
	janitor *sync2.Cycle

	workers sync.WaitGroup
	closing sync.WaitGroup
}

// New creates a manager. The returned manager must be closed.
func New(log *zap.Logger, config Config) (*Manager, error) {
	if config.Dir == "" {
		return nil, Error.New("deposits directory not configured")
	}
	if config.Stripes <= 0 {
		config.Stripes = 5
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 15 * time.Minute
	}
	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		return nil, Error.Wrap(err)
	}

	cleanup := config.IdleTimeout / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}

	m := &Manager{
		log:     log,
		config:  config,
		stripes: sync2.NewStripes(config.Stripes),
		// expired stores are collected by the janitor below, which Close stops
		stores:  cache.New(config.IdleTimeout, 0),
		janitor: sync2.NewCycle(cleanup),
	}
	m.stores.OnEvicted(m.evicted)

	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		_ = m.janitor.Run(context.Background(), m.collect)
	}()
	return m, nil
}

// collect evicts the stores that have been idle for longer than the idle
// timeout.
func (m *Manager) collect(ctx context.Context) error {
	m.stores.DeleteExpired()
	return nil
}

// evicted retires a store dropped from the cache and closes it in the
// background once its remaining transactions end.
func (m *Manager) evicted(key string, value interface{}) {
	store := value.(*graphstore.Store)
	store.Retire()
	mon.Counter("graph_store_evicted").Inc(1)

	m.closing.Add(1)
	go func() {
		defer m.closing.Done()
		if err := store.Close(); err != nil {
			m.log.Error("failed to close graph store", zap.String("deposit", key), zap.Error(err))
		}
	}()
}

// StoreDir returns the directory of the graph store of a deposit.
func (m *Manager) StoreDir(depositID pid.PID) string {
	return filepath.Join(m.config.Dir, depositID.Dir())
}

func graphName(depositID pid.PID) string { return depositID.URI() }

// lease finds or opens the store of a deposit and pins it. The stripe of the
// deposit is held only while doing so.
func (m *Manager) lease(ctx context.Context, depositID pid.PID) (_ *graphstore.Lease, err error) {
	defer mon.Task()(&ctx)(&err)
	key := depositID.URI()

	unlock, err := m.stripes.Lock(ctx, key)
	if err != nil {
		return nil, ErrInterrupted.Wrap(err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		store, err := m.fetchOrCreate(depositID)
		if err != nil {
			return nil, err
		}

		lease, err := store.Lease()
		if graphstore.ErrClosed.Has(err) && attempt < 2 {
			// retired by idle eviction between lookup and lease
			m.stores.Delete(key)
			continue
		}
		if err != nil {
			return nil, err
		}

		m.stores.Set(key, store, cache.DefaultExpiration)
		return lease, nil
	}
}

// fetchOrCreate must be called with the stripe of the deposit held.
func (m *Manager) fetchOrCreate(depositID pid.PID) (*graphstore.Store, error) {
	key := depositID.URI()
	if value, ok := m.stores.Get(key); ok {
		return value.(*graphstore.Store), nil
	}
	// an expired entry the janitor has not collected yet still holds the
	// database open; evict it first.
	m.stores.Delete(key)

	store, err := graphstore.Open(m.log.Named(depositID.ID()), m.StoreDir(depositID), graphstore.Options{
		OpenTimeout: m.config.OpenTimeout,
	})
	if err != nil {
		return nil, err
	}
	mon.Counter("graph_store_opened").Inc(1)
	m.stores.Set(key, store, cache.DefaultExpiration)
	return store, nil
}

func (m *Manager) begin(ctx context.Context, depositID pid.PID, write bool) (*Txn, error) {
	lease, err := m.lease(ctx, depositID)
	if err != nil {
		return nil, convert(err)
	}

	var tx *graphstore.Tx
	if write {
		tx, err = lease.BeginWrite(ctx)
	} else {
		tx, err = lease.BeginRead(ctx)
	}
	if err != nil {
		return nil, convert(err)
	}
	return &Txn{deposit: depositID, graph: graphName(depositID), tx: tx}, nil
}

// GetWriteModel starts a write transaction on the graph of a deposit. Only
// one write transaction per deposit is open at a time; others wait until
// it ends or their ctx is canceled, which yields ErrInterrupted.
func (m *Manager) GetWriteModel(ctx context.Context, depositID pid.PID) (_ *Txn, err error) {
	defer mon.Task()(&ctx)(&err)
	return m.begin(ctx, depositID, true)
}

// GetReadModel starts a read transaction on the graph of a deposit.
func (m *Manager) GetReadModel(ctx context.Context, depositID pid.PID) (_ *Txn, err error) {
	defer mon.Task()(&ctx)(&err)
	return m.begin(ctx, depositID, false)
}

// Read runs fn in a read transaction that is always released.
func (m *Manager) Read(ctx context.Context, depositID pid.PID, fn func(*Txn) error) error {
	txn, err := m.GetReadModel(ctx, depositID)
	if err != nil {
		return err
	}
	defer func() { _ = txn.End() }()
	return fn(txn)
}

// Write runs fn in a write transaction, committing when fn succeeds and
// aborting otherwise.
func (m *Manager) Write(ctx context.Context, depositID pid.PID, fn func(*Txn) error) error {
	txn, err := m.GetWriteModel(ctx, depositID)
	if err != nil {
		return err
	}
	if err := fn(txn); err != nil {
		return errs.Combine(err, txn.Abort())
	}
	return txn.Commit(true)
}

// AddTriples merges model into the graph of the deposit in one commit. When
// newID and parentID are both given, parentID is linked to newID first.
func (m *Manager) AddTriples(ctx context.Context, depositID pid.PID, model *rdf.Model, newID, parentID *pid.PID) (err error) {
	defer mon.Task()(&ctx)(&err)
	return m.Write(ctx, depositID, func(txn *Txn) error {
		if newID != nil && parentID != nil {
			if err := txn.Add(rdf.NewTriple(rdf.Resource(*parentID), rdf.Contains, rdf.Resource(*newID))); err != nil {
				return err
			}
		}
		if model == nil {
			return nil
		}
		return txn.AddModel(model)
	})
}

// PerformUpdate applies an update to the graph of the deposit and commits.
func (m *Manager) PerformUpdate(ctx context.Context, depositID pid.PID, update graphstore.Update) (err error) {
	defer mon.Task()(&ctx)(&err)
	return m.Write(ctx, depositID, func(txn *Txn) error {
		_, _, err := txn.Update(update)
		return err
	})
}

// PerformQuery evaluates a query against the graph of the deposit.
func (m *Manager) PerformQuery(ctx context.Context, depositID pid.PID, query graphstore.Select) (rows []graphstore.Binding, err error) {
	defer mon.Task()(&ctx)(&err)
	err = m.Read(ctx, depositID, func(txn *Txn) error {
		rows, err = txn.Query(query)
		return err
	})
	return rows, err
}

// CloseModel evicts and closes the store of the deposit, waiting for its
// open transactions to end.
func (m *Manager) CloseModel(ctx context.Context, depositID pid.PID) (err error) {
	defer mon.Task()(&ctx)(&err)
	key := depositID.URI()

	unlock, err := m.stripes.Lock(ctx, key)
	if err != nil {
		return ErrInterrupted.Wrap(err)
	}
	value, ok := m.stores.Get(key)
	m.stores.Delete(key)
	unlock()

	if !ok {
		return nil
	}
	return value.(*graphstore.Store).Close()
}

// RemoveModel deletes the graph of the deposit, closes its store and
// removes the store directory.
func (m *Manager) RemoveModel(ctx context.Context, depositID pid.PID) (err error) {
	defer mon.Task()(&ctx)(&err)

	err = m.Write(ctx, depositID, func(txn *Txn) error {
		return txn.tx.DropGraph(txn.graph)
	})
	if err != nil {
		return err
	}
	if err := m.CloseModel(ctx, depositID); err != nil {
		return err
	}
	m.log.Debug("removed deposit model", zap.Stringer("deposit", depositID))
	return Error.Wrap(os.RemoveAll(m.StoreDir(depositID)))
}

// Close stops idle collection and closes every cached store, waiting for
// open transactions to end.
func (m *Manager) Close() error {
	m.janitor.Stop()
	m.workers.Wait()

	m.stores.DeleteExpired()
	for key := range m.stores.Items() {
		m.stores.Delete(key)
	}
	m.closing.Wait()
	return nil
}

// convert maps cancellation to ErrInterrupted and leaves other errors as is.
func convert(err error) error {
	if err == nil || ErrInterrupted.Has(err) {
		return err
	}
	if graphstore.ErrInterrupted.Has(err) || errs2.IsCanceled(err) {
		return ErrInterrupted.Wrap(err)
	}
	return err
}
