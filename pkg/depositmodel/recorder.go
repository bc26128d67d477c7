// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package depositmodel

import (
	"context"
	"net/url"
	"strconv"

	digest "github.com/opencontainers/go-digest"

	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/rdf"
	"github.com/boxc/depositcore/pkg/transfer"
)

var recordPredicates = []rdf.Term{rdf.StorageURI, rdf.StagingURI, rdf.TransferVerified, rdf.ContentDigest}

// TransferRecorder keeps transfer outcomes in the graph of a deposit so
// that a resumed deposit job does not copy binaries twice.
//
// It opens its own transactions, so it must not be used while the caller
// holds the write transaction of the same deposit.
type TransferRecorder struct {
	manager *Manager
	deposit pid.PID
}

var _ transfer.Recorder = (*TransferRecorder)(nil)

// TransferRecorder returns a recorder for the deposit.
func (m *Manager) TransferRecorder(depositID pid.PID) *TransferRecorder {
	return &TransferRecorder{manager: m, deposit: depositID}
}

// Lookup implements transfer.Recorder.
func (recorder *TransferRecorder) Lookup(ctx context.Context, target pid.PID) (record transfer.Record, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)

	err = recorder.manager.Read(ctx, recorder.deposit, func(txn *Txn) error {
		triples, err := txn.Match(rdf.Resource(target), rdf.Term{}, rdf.Term{})
		if err != nil {
			return err
		}

		model := rdf.NewModel(triples...)
		subject := rdf.Resource(target)
		dest, found := model.Object(subject, rdf.StorageURI)
		if !found {
			return nil
		}

		record = transfer.Record{Target: target}
		if record.Destination, err = url.Parse(dest.Value); err != nil {
			return Error.New("invalid storage URI of %s: %v", target, err)
		}
		if staging, found := model.Object(subject, rdf.StagingURI); found {
			if record.Source, err = url.Parse(staging.Value); err != nil {
				return Error.New("invalid staging URI of %s: %v", target, err)
			}
		}
		if verified, found := model.Object(subject, rdf.TransferVerified); found {
			record.Verified, _ = strconv.ParseBool(verified.Value)
		}
		if sum, found := model.Object(subject, rdf.ContentDigest); found {
			record.Digest = digest.Digest(sum.Value)
		}
		ok = true
		return nil
	})
	return record, ok, err
}

// Record implements transfer.Recorder. A previous record of the target is
// replaced.
func (recorder *TransferRecorder) Record(ctx context.Context, record transfer.Record) (err error) {
	defer mon.Task()(&ctx)(&err)
	if record.Destination == nil {
		return Error.New("transfer record of %s without destination", record.Target)
	}

	subject := rdf.Resource(record.Target)
	return recorder.manager.Write(ctx, recorder.deposit, func(txn *Txn) error {
		for _, predicate := range recordPredicates {
			old, err := txn.Match(subject, predicate, rdf.Term{})
			if err != nil {
				return err
			}
			if err := txn.Remove(old...); err != nil {
				return err
			}
		}

		triples := []rdf.Triple{
			rdf.NewTriple(subject, rdf.StorageURI, rdf.IRI(record.Destination.String())),
			rdf.NewTriple(subject, rdf.TransferVerified, rdf.TypedLiteral(strconv.FormatBool(record.Verified), rdf.XSDBoolean)),
		}
		if record.Source != nil {
			triples = append(triples, rdf.NewTriple(subject, rdf.StagingURI, rdf.IRI(record.Source.String())))
		}
		if record.Digest != "" {
			triples = append(triples, rdf.NewTriple(subject, rdf.ContentDigest, rdf.Literal(record.Digest.String())))
		}
		return txn.Add(triples...)
	})
}
