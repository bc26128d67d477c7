// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package depositmodel

import (
	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/rdf"
	"github.com/boxc/depositcore/storage/graphstore"
)

// Txn is a read or write view of one deposit graph inside a transaction.
// It may be held across several operations but must always be ended.
type Txn struct {
	deposit pid.PID
	graph   string
	tx      *graphstore.Tx
}

// Deposit returns the deposit the transaction belongs to.
func (txn *Txn) Deposit() pid.PID { return txn.deposit }

// Writable returns whether the transaction may modify the graph.
func (txn *Txn) Writable() bool { return txn.tx.Writable() }

// Add adds triples to the deposit graph.
func (txn *Txn) Add(triples ...rdf.Triple) error {
	return convert(txn.tx.Add(txn.graph, triples...))
}

// AddModel adds every triple of model to the deposit graph.
func (txn *Txn) AddModel(model *rdf.Model) error {
	return convert(txn.tx.AddModel(txn.graph, model))
}

// Remove removes triples from the deposit graph.
func (txn *Txn) Remove(triples ...rdf.Triple) error {
	return convert(txn.tx.Remove(txn.graph, triples...))
}

// Match returns the triples matching the pattern; zero terms match anything.
func (txn *Txn) Match(s, p, o rdf.Term) ([]rdf.Triple, error) {
	triples, err := txn.tx.Match(txn.graph, s, p, o)
	return triples, convert(err)
}

// Model returns a detached copy of the deposit graph.
func (txn *Txn) Model() (*rdf.Model, error) {
	model, err := txn.tx.Model(txn.graph)
	return model, convert(err)
}

// Query evaluates a select query against the deposit graph.
func (txn *Txn) Query(query graphstore.Select) ([]graphstore.Binding, error) {
	rows, err := txn.tx.Query(txn.graph, query)
	return rows, convert(err)
}

// Update applies an update to the deposit graph without committing.
func (txn *Txn) Update(update graphstore.Update) (deleted, inserted int, err error) {
	deleted, inserted, err = txn.tx.Update(txn.graph, update)
	return deleted, inserted, convert(err)
}

// Commit makes the changes durable. When endTransaction is false the
// transaction stays open, still excluding other writers, for further work;
// read transactions have nothing to keep and reject it, staying open.
func (txn *Txn) Commit(endTransaction bool) error {
	if !endTransaction {
		if !txn.tx.Writable() {
			return Error.New("commit without ending needs a write transaction")
		}
		return convert(txn.tx.Checkpoint())
	}
	return convert(txn.tx.Commit())
}

// CommitOrAbort commits and ends the transaction, or aborts it when abort
// is set.
func (txn *Txn) CommitOrAbort(abort bool) error {
	if abort {
		return txn.Abort()
	}
	return txn.Commit(true)
}

// Abort discards uncommitted changes and ends the transaction.
func (txn *Txn) Abort() error {
	return convert(txn.tx.Rollback())
}

// End ends the transaction, discarding anything not yet committed. Ending
// an already finished transaction is a no-op.
func (txn *Txn) End() error {
	return convert(txn.tx.Rollback())
}

// Done returns whether the transaction has ended.
func (txn *Txn) Done() bool { return txn.tx.Done() }
