// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package transfer

import (
	"context"
	"sync"

	"github.com/boxc/depositcore/pkg/pid"
)

// MemoryRecorder keeps transfer records in memory. Records do not survive
// the process, so it suits tools and tests rather than deposit jobs.
type MemoryRecorder struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{records: map[string]Record{}}
}

// Lookup implements Recorder.
func (recorder *MemoryRecorder) Lookup(ctx context.Context, target pid.PID) (Record, bool, error) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	record, ok := recorder.records[target.QualifiedID()]
	return record, ok, nil
}

// Record implements Recorder.
func (recorder *MemoryRecorder) Record(ctx context.Context, record Record) error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.records[record.Target.QualifiedID()] = record
	return nil
}
