// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storagelocation

import (
	"context"
	"io/ioutil"

	"sigs.k8s.io/yaml"

	"github.com/boxc/depositcore/pkg/pid"
)

// ParentMap is an AncestorLookup over a fixed child id to parent mapping.
type ParentMap map[string]pid.PID

var _ AncestorLookup = ParentMap(nil)

// Ancestors implements AncestorLookup. The chain of every object other than
// the root must end at the root.
func (parents ParentMap) Ancestors(ctx context.Context, p pid.PID) ([]pid.PID, error) {
	var reversed []pid.PID
	seen := map[string]bool{p.ID(): true}

	current := p.Object()
	for !current.IsRoot() {
		parent, ok := parents[current.ID()]
		if !ok {
			return nil, ErrUnknownLocation.New("ancestry of %s stops at %s below the repository root", p, current)
		}
		if seen[parent.ID()] {
			return nil, Error.New("cycle in ancestry of %s at %s", p, parent)
		}
		seen[parent.ID()] = true
		reversed = append(reversed, parent)
		current = parent
	}

	ancestors := make([]pid.PID, len(reversed))
	for i, ancestor := range reversed {
		ancestors[len(reversed)-1-i] = ancestor
	}
	return ancestors, nil
}

// LoadParentMap reads a JSON or YAML object mapping child ids to parent
// ids.
func LoadParentMap(path string) (ParentMap, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, ErrConfig.Wrap(err)
	}
	var raw map[string]string
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return nil, ErrConfig.New("invalid parent map %s: %v", path, err)
	}

	parents := make(ParentMap, len(raw))
	for child, parent := range raw {
		c, err := pid.Parse(child)
		if err != nil {
			return nil, ErrConfig.Wrap(err)
		}
		p, err := pid.Parse(parent)
		if err != nil {
			return nil, ErrConfig.Wrap(err)
		}
		parents[c.ID()] = p
	}
	return parents, nil
}

// StaticObject is an Object with a fixed explicit location assignment.
type StaticObject struct {
	ID         pid.PID
	LocationID string
}

// PID implements Object.
func (obj StaticObject) PID() pid.PID { return obj.ID }

// StorageLocationID implements Object.
func (obj StaticObject) StorageLocationID(ctx context.Context) (string, bool, error) {
	return obj.LocationID, obj.LocationID != "", nil
}
