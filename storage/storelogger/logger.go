// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package storelogger logs the calls made to a transfer record store.
package storelogger

import (
	"context"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/transfer"
)

var mon = monkit.Package()

var id int64

// Logger implements a zap.Logger for transfer.Recorder
type Logger struct {
	log   *zap.Logger
	store transfer.Recorder
}

var _ transfer.Recorder = (*Logger)(nil)

// New creates a new Logger with log and store
func New(log *zap.Logger, store transfer.Recorder) *Logger {
	loggerid := atomic.AddInt64(&id, 1)
	name := strconv.Itoa(int(loggerid))
	return &Logger{log.Named(name), store}
}

// Lookup looks up the transfer record of target
func (store *Logger) Lookup(ctx context.Context, target pid.PID) (_ transfer.Record, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)
	record, ok, err := store.store.Lookup(ctx, target)
	store.log.Debug("Lookup",
		zap.Stringer("target", target),
		zap.Bool("found", ok),
		zap.Bool("verified", record.Verified),
		zap.Error(err))
	return record, ok, err
}

// Record stores a transfer record
func (store *Logger) Record(ctx context.Context, record transfer.Record) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("Record",
		zap.Stringer("target", record.Target),
		zap.Stringer("destination", record.Destination),
		zap.String("digest", record.Digest.String()),
		zap.Bool("verified", record.Verified))
	return store.store.Record(ctx, record)
}
