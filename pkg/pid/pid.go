// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package pid

import (
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// Error is the default pid error class
var Error = errs.Class("pid error")

const (
	// URIBase is the namespace all repository object URIs live under.
	URIBase = "https://repository/content/"

	// RootID identifies the repository root container.
	RootID = "collections"

	// HashedPathDepth is the number of directory levels derived from an id.
	HashedPathDepth = 4
)

// PID identifies a deposit or a repository object, optionally narrowed to
// one of its components (a datastream such as "datafs/original_file").
type PID struct {
	id        string
	component string
}

// New mints a new random PID.
func New() PID {
	return PID{id: uuid.New().String()}
}

// Root returns the PID of the repository root.
func Root() PID {
	return PID{id: RootID}
}

// FromID creates a PID from a bare id.
func FromID(id string) (PID, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == RootID {
		return Root(), nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return PID{}, Error.New("invalid id %q: %v", id, err)
	}
	return PID{id: id}, nil
}

// MustFromID is FromID that panics, for constants and tests.
func MustFromID(id string) PID {
	p, err := FromID(id)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse accepts either a canonical URI or "<id>[/<component>]".
func Parse(s string) (PID, error) {
	s = strings.TrimPrefix(s, URIBase)
	s = strings.Trim(s, "/")
	if s == "" {
		return PID{}, Error.New("empty identifier")
	}
	parts := strings.SplitN(s, "/", 2)
	p, err := FromID(parts[0])
	if err != nil {
		return PID{}, err
	}
	if len(parts) == 2 {
		return p.WithComponent(parts[1])
	}
	return p, nil
}

// WithComponent returns a PID for a component of the object. Empty, "." and
// ".." segments are rejected.
func (p PID) WithComponent(component string) (PID, error) {
	for _, segment := range strings.Split(component, "/") {
		switch segment {
		case "", ".", "..":
			return PID{}, Error.New("invalid component %q", component)
		}
	}
	return PID{id: p.id, component: component}, nil
}

// ID returns the bare object id.
func (p PID) ID() string { return p.id }

// Component returns the component path, or "" for the object itself.
func (p PID) Component() string { return p.component }

// Object returns the PID with the component stripped.
func (p PID) Object() PID { return PID{id: p.id} }

// IsZero returns whether the PID is unset.
func (p PID) IsZero() bool { return p.id == "" }

// IsRoot returns whether the PID names the repository root.
func (p PID) IsRoot() bool { return p.id == RootID && p.component == "" }

// QualifiedID returns "<id>[/<component>]".
func (p PID) QualifiedID() string {
	if p.component == "" {
		return p.id
	}
	return p.id + "/" + p.component
}

// URI returns the canonical URI of the object or component.
func (p PID) URI() string { return URIBase + p.QualifiedID() }

// Dir returns the on-disk directory name used for the object.
func (p PID) Dir() string { return p.id }

// String implements fmt.Stringer.
func (p PID) String() string { return p.QualifiedID() }

// HashedPath returns depth nested directory names built from successive
// pairs of hex characters of the id.
func (p PID) HashedPath(depth int) string {
	hex := strings.Replace(p.id, "-", "", -1)
	parts := make([]string, 0, depth)
	for i := 0; i < depth && 2*i+2 <= len(hex); i++ {
		parts = append(parts, hex[2*i:2*i+2])
	}
	return strings.Join(parts, "/")
}
