// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package graphstore

import (
	"bytes"

	digest "github.com/opencontainers/go-digest"
	bolt "go.etcd.io/bbolt"

	"github.com/boxc/depositcore/pkg/rdf"
)

// Tx is an open transaction on a store. A Tx is bound to one goroutine at
// a time and must be finished with Commit or Rollback.
type Tx struct {
	store    *Store
	tx       *bolt.Tx
	writable bool
	done     bool
}

// Writable returns whether the transaction may modify the store.
func (tx *Tx) Writable() bool { return tx.writable }

// Done returns whether the transaction has been finished.
func (tx *Tx) Done() bool { return tx.done }

// tripleKey orders triples by subject so a subject lookup is a prefix scan.
// The digest suffix keeps keys short regardless of literal size.
func tripleKey(t rdf.Triple) []byte {
	return []byte(t.Subject.String() + "\x00" + digest.FromString(t.String()).Encoded())
}

func subjectPrefix(s rdf.Term) []byte {
	return []byte(s.String() + "\x00")
}

func (tx *Tx) check(write bool) error {
	if tx.done {
		return ErrTxDone.New("%s", tx.store.Path)
	}
	if write && !tx.writable {
		return Error.New("write in read-only transaction")
	}
	return nil
}

// Add inserts triples into the named graph, creating the graph if needed.
func (tx *Tx) Add(graph string, triples ...rdf.Triple) error {
	if err := tx.check(true); err != nil {
		return err
	}
	bucket, err := tx.tx.CreateBucketIfNotExists([]byte(graph))
	if err != nil {
		return Error.Wrap(err)
	}
	for _, t := range triples {
		if err := t.Validate(); err != nil {
			return Error.Wrap(err)
		}
		if err := bucket.Put(tripleKey(t), []byte(t.String())); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// AddModel inserts every triple of model into the named graph.
func (tx *Tx) AddModel(graph string, model *rdf.Model) error {
	return tx.Add(graph, model.Triples()...)
}

// Remove deletes triples from the named graph.
func (tx *Tx) Remove(graph string, triples ...rdf.Triple) error {
	if err := tx.check(true); err != nil {
		return err
	}
	bucket := tx.tx.Bucket([]byte(graph))
	if bucket == nil {
		return nil
	}
	for _, t := range triples {
		if err := bucket.Delete(tripleKey(t)); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// Match returns triples of the named graph matching the pattern. Zero terms
// match anything.
func (tx *Tx) Match(graph string, s, p, o rdf.Term) ([]rdf.Triple, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	bucket := tx.tx.Bucket([]byte(graph))
	if bucket == nil {
		return nil, nil
	}

	var result []rdf.Triple
	cursor := bucket.Cursor()

	var prefix []byte
	k, v := cursor.First()
	if !s.IsZero() {
		prefix = subjectPrefix(s)
		k, v = cursor.Seek(prefix)
	}
	for ; k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
		t, err := rdf.ParseTriple(string(v))
		if err != nil {
			return nil, Error.Wrap(err)
		}
		if t.Matches(s, p, o) {
			result = append(result, t)
		}
	}
	return result, nil
}

// Model returns a copy of the whole named graph.
func (tx *Tx) Model(graph string) (*rdf.Model, error) {
	triples, err := tx.Match(graph, rdf.Term{}, rdf.Term{}, rdf.Term{})
	if err != nil {
		return nil, err
	}
	return rdf.NewModel(triples...), nil
}

// HasGraph returns whether the named graph exists.
func (tx *Tx) HasGraph(graph string) bool {
	return !tx.done && tx.tx.Bucket([]byte(graph)) != nil
}

// Graphs lists the names of all graphs in the store.
func (tx *Tx) Graphs() ([]string, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	var names []string
	err := tx.tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
		names = append(names, string(name))
		return nil
	})
	return names, Error.Wrap(err)
}

// DropGraph deletes the named graph and all of its triples.
func (tx *Tx) DropGraph(graph string) error {
	if err := tx.check(true); err != nil {
		return err
	}
	err := tx.tx.DeleteBucket([]byte(graph))
	if err == bolt.ErrBucketNotFound {
		return nil
	}
	return Error.Wrap(err)
}

// Checkpoint commits the changes made so far and continues in a new write
// transaction without giving up the writer slot.
func (tx *Tx) Checkpoint() error {
	if err := tx.check(true); err != nil {
		return err
	}
	if err := tx.tx.Commit(); err != nil {
		tx.finish()
		return Error.Wrap(err)
	}
	next, err := tx.store.db.Begin(true)
	if err != nil {
		tx.finish()
		return Error.Wrap(err)
	}
	tx.tx = next
	return nil
}

// Commit finishes the transaction, making writes visible. Committing a read
// transaction just releases it.
func (tx *Tx) Commit() error {
	if err := tx.check(false); err != nil {
		return err
	}
	defer tx.finish()
	if !tx.writable {
		return Error.Wrap(tx.tx.Rollback())
	}
	return Error.Wrap(tx.tx.Commit())
}

// Rollback finishes the transaction, discarding writes. It is a no-op on a
// finished transaction so it can always be deferred.
func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}
	defer tx.finish()
	return Error.Wrap(tx.tx.Rollback())
}

func (tx *Tx) finish() {
	tx.done = true
	if tx.writable {
		tx.store.writer.Release(1)
	}
	tx.store.active.Done()
}
