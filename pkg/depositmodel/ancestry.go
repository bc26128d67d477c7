// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package depositmodel

import (
	"context"

	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/rdf"
	"github.com/boxc/depositcore/pkg/storagelocation"
	"github.com/boxc/depositcore/pkg/transfer"
)

// GraphAncestors resolves the ancestry of objects that exist only in a
// deposit graph. Objects are linked to their parents by cdr:contains; the
// deposit itself stands for the destination container it is ingested into,
// whose own ancestry comes from the repository.
type GraphAncestors struct {
	Manager     *Manager
	Deposit     pid.PID
	Destination pid.PID
	Repository  storagelocation.AncestorLookup
}

var _ storagelocation.AncestorLookup = (*GraphAncestors)(nil)

// Ancestors implements storagelocation.AncestorLookup.
func (ancestry *GraphAncestors) Ancestors(ctx context.Context, p pid.PID) (_ []pid.PID, err error) {
	defer mon.Task()(&ctx)(&err)

	var reversed []pid.PID
	var top pid.PID
	err = ancestry.Manager.Read(ctx, ancestry.Deposit, func(txn *Txn) error {
		seen := map[string]bool{p.ID(): true}
		current := p.Object()
		for {
			triples, err := txn.Match(rdf.Term{}, rdf.Contains, rdf.Resource(current))
			if err != nil {
				return err
			}
			if len(triples) == 0 {
				top = current
				return nil
			}

			parent, err := pid.Parse(triples[0].Subject.Value)
			if err != nil {
				return Error.New("invalid parent of %s: %v", current, err)
			}
			if parent.ID() == ancestry.Deposit.ID() {
				top = ancestry.Destination
				reversed = append(reversed, ancestry.Destination)
				return nil
			}
			if seen[parent.ID()] {
				return Error.New("cycle in deposit graph at %s", parent)
			}
			seen[parent.ID()] = true
			reversed = append(reversed, parent)
			current = parent
		}
	})
	if err != nil {
		return nil, err
	}

	var ancestors []pid.PID
	if ancestry.Repository != nil && !top.IsZero() && !top.IsRoot() {
		ancestors, err = ancestry.Repository.Ancestors(ctx, top)
		if err != nil {
			return nil, err
		}
	}
	for i := len(reversed) - 1; i >= 0; i-- {
		ancestors = append(ancestors, reversed[i])
	}
	return ancestors, nil
}

// Object is a deposited object whose explicit storage location assignment
// is read from the deposit graph.
type Object struct {
	manager *Manager
	deposit pid.PID
	id      pid.PID
}

var _ storagelocation.Object = Object{}

// Object returns the deposited object id of the deposit.
func (m *Manager) Object(depositID, id pid.PID) Object {
	return Object{manager: m, deposit: depositID, id: id.Object()}
}

// Objects returns the objects of a deposit for multi-destination transfers.
func (m *Manager) Objects(depositID pid.PID) transfer.Objects {
	return func(target pid.PID) storagelocation.Object {
		return m.Object(depositID, target)
	}
}

// PID implements storagelocation.Object.
func (obj Object) PID() pid.PID { return obj.id }

// StorageLocationID implements storagelocation.Object.
func (obj Object) StorageLocationID(ctx context.Context) (id string, ok bool, err error) {
	err = obj.manager.Read(ctx, obj.deposit, func(txn *Txn) error {
		triples, err := txn.Match(rdf.Resource(obj.id), rdf.StorageLocation, rdf.Term{})
		if err != nil || len(triples) == 0 {
			return err
		}
		id, ok = triples[0].Object.Value, true
		return nil
	})
	return id, ok, err
}

// AssignStorageLocation explicitly assigns a storage location to an
// object of the deposit, replacing any earlier assignment.
func (m *Manager) AssignStorageLocation(ctx context.Context, depositID, id pid.PID, locationID string) error {
	subject := rdf.Resource(id.Object())
	return m.Write(ctx, depositID, func(txn *Txn) error {
		old, err := txn.Match(subject, rdf.StorageLocation, rdf.Term{})
		if err != nil {
			return err
		}
		if err := txn.Remove(old...); err != nil {
			return err
		}
		return txn.Add(rdf.NewTriple(subject, rdf.StorageLocation, rdf.Literal(locationID)))
	})
}
