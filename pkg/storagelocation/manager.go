// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package storagelocation decides where the binaries of repository objects
// are stored. Locations are assigned to containers by mappings and
// inherited down the repository tree.
package storagelocation

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/boxc/depositcore/pkg/pid"
)

var mon = monkit.Package()

var (
	// Error is the default storagelocation error class
	Error = errs.Class("storage location error")
	// ErrConfig is returned for invalid location or mapping definitions
	ErrConfig = errs.Class("storage location config error")
	// ErrUnknownLocation is returned when nothing resolves to a location
	ErrUnknownLocation = errs.Class("unknown storage location")
)

// collectionDepth is the depth of collections in a content path where the
// repository root is at depth 0 and administrative units at depth 1.
// Mappings below it are not inherited.
const collectionDepth = 2

// AncestorLookup provides the ancestors of repository objects.
type AncestorLookup interface {
	// Ancestors returns the ancestors of p ordered from the repository root
	// down to the direct parent.
	Ancestors(ctx context.Context, p pid.PID) ([]pid.PID, error)
}

// Object is a repository object whose storage location is being resolved.
type Object interface {
	PID() pid.PID
	// StorageLocationID returns the explicitly assigned location, if any.
	StorageLocationID(ctx context.Context) (id string, ok bool, err error)
}

// Manager resolves storage locations. It is immutable after construction
// and safe for concurrent use.
type Manager struct {
	log       *zap.Logger
	ancestors AncestorLookup

	locations map[string]StorageLocation
	ordered   []StorageLocation
	mappings  map[string]StorageLocation
}

// LoadManager reads the configured definition files and creates a manager.
func LoadManager(log *zap.Logger, config Config, ancestors AncestorLookup) (*Manager, error) {
	locations, mappings, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewManager(log, locations, mappings, ancestors)
}

// NewManager validates the definitions and creates a manager.
func NewManager(log *zap.Logger, locations []LocationConfig, mappings []MappingConfig, ancestors AncestorLookup) (*Manager, error) {
	m := &Manager{
		log:       log,
		ancestors: ancestors,
		locations: make(map[string]StorageLocation, len(locations)),
		mappings:  make(map[string]StorageLocation, len(mappings)),
	}

	for _, def := range locations {
		if _, exists := m.locations[def.ID]; exists {
			return nil, ErrConfig.New("duplicate storage location id %q", def.ID)
		}

		var loc StorageLocation
		switch Type(strings.ToLower(string(def.Type))) {
		case TypeFilesystem:
			fs, err := NewFilesystemLocation(def.ID, def.Name, def.Base)
			if err != nil {
				return nil, err
			}
			loc = fs
		default:
			return nil, ErrConfig.New("storage location %q has unsupported type %q", def.ID, def.Type)
		}

		m.locations[def.ID] = loc
		m.ordered = append(m.ordered, loc)
	}
	sort.Slice(m.ordered, func(i, k int) bool { return m.ordered[i].ID() < m.ordered[k].ID() })

	for _, mapping := range mappings {
		container, err := pid.Parse(mapping.ID)
		if err != nil {
			return nil, ErrConfig.New("mapping for invalid container %q: %v", mapping.ID, err)
		}
		if _, exists := m.mappings[container.ID()]; exists {
			return nil, ErrConfig.New("duplicate mapping for container %q", mapping.ID)
		}
		loc, ok := m.locations[mapping.DefaultLocation]
		if !ok {
			return nil, ErrConfig.New("mapping for container %q references unknown storage location %q",
				mapping.ID, mapping.DefaultLocation)
		}
		m.mappings[container.ID()] = loc
	}

	log.Debug("loaded storage locations",
		zap.Int("locations", len(m.locations)),
		zap.Int("mappings", len(m.mappings)))
	return m, nil
}

// Locations returns all configured locations ordered by id.
func (m *Manager) Locations() []StorageLocation {
	return append([]StorageLocation(nil), m.ordered...)
}

// GetStorageLocationByID returns the location with id, or nil.
func (m *Manager) GetStorageLocationByID(id string) StorageLocation {
	loc, ok := m.locations[id]
	if !ok {
		return nil
	}
	return loc
}

// GetStorageLocationForURI returns the location u lies under.
func (m *Manager) GetStorageLocationForURI(u *url.URL) (StorageLocation, error) {
	for _, loc := range m.ordered {
		if loc.IsValidURI(u) {
			return loc, nil
		}
	}
	return nil, ErrUnknownLocation.New("no storage location contains %s", u)
}

// contentPath returns the root-first path of p cut off below collection
// level, so only mappings on the root, units and collections apply. Paths
// that do not start at the root are rejected, since the depth of their
// entries is unknown.
func (m *Manager) contentPath(ctx context.Context, p pid.PID) ([]pid.PID, error) {
	object := p.Object()
	if object.IsRoot() {
		return []pid.PID{object}, nil
	}
	if m.ancestors == nil {
		return nil, ErrUnknownLocation.New("no ancestry known for %s", p)
	}

	ancestors, err := m.ancestors.Ancestors(ctx, object)
	if err != nil {
		if ErrUnknownLocation.Has(err) {
			return nil, err
		}
		return nil, Error.Wrap(err)
	}
	if len(ancestors) == 0 || !ancestors[0].IsRoot() {
		return nil, ErrUnknownLocation.New("ancestry of %s does not start at the repository root", p)
	}
	path := append(ancestors, object)

	if len(path) > collectionDepth+1 {
		path = path[:collectionDepth+1]
	}
	return path, nil
}

// GetDefaultStorageLocation returns the location inherited by p from the
// nearest mapped container at or above collection level.
func (m *Manager) GetDefaultStorageLocation(ctx context.Context, p pid.PID) (_ StorageLocation, err error) {
	defer mon.Task()(&ctx)(&err)

	path, err := m.contentPath(ctx, p)
	if err != nil {
		return nil, err
	}
	for i := len(path) - 1; i >= 0; i-- {
		if loc, ok := m.mappings[path[i].ID()]; ok {
			return loc, nil
		}
	}
	return nil, ErrUnknownLocation.New("no storage location mapped for %s or its ancestors", p)
}

// GetStorageLocation returns the explicitly assigned location of obj, or
// its default location when none is assigned.
func (m *Manager) GetStorageLocation(ctx context.Context, obj Object) (_ StorageLocation, err error) {
	defer mon.Task()(&ctx)(&err)

	id, ok, err := obj.StorageLocationID(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if ok {
		loc := m.GetStorageLocationByID(id)
		if loc == nil {
			return nil, ErrUnknownLocation.New("%s is assigned to unconfigured storage location %q", obj.PID(), id)
		}
		return loc, nil
	}
	return m.GetDefaultStorageLocation(ctx, obj.PID())
}

// ListAvailableStorageLocations returns the distinct locations mapped on
// the path of p, nearest first.
func (m *Manager) ListAvailableStorageLocations(ctx context.Context, p pid.PID) (_ []StorageLocation, err error) {
	defer mon.Task()(&ctx)(&err)

	path, err := m.contentPath(ctx, p)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var result []StorageLocation
	for i := len(path) - 1; i >= 0; i-- {
		loc, ok := m.mappings[path[i].ID()]
		if !ok || seen[loc.ID()] {
			continue
		}
		seen[loc.ID()] = true
		result = append(result, loc)
	}
	return result, nil
}
