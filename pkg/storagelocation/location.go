// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storagelocation

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/boxc/depositcore/pkg/pid"
)

// Type is the kind of a storage location.
type Type string

// TypeFilesystem is a location on a locally mounted filesystem.
const TypeFilesystem Type = "filesystem"

// StorageLocation is a configured destination for binary content.
type StorageLocation interface {
	// ID returns the unique id of the location.
	ID() string
	// Name returns the display name of the location.
	Name() string
	// Type returns the kind of location.
	Type() Type
	// BaseURI returns the URI all content of the location lives under.
	BaseURI() *url.URL
	// StorageURI returns the URI content for p is stored at.
	StorageURI(p pid.PID) *url.URL
	// IsValidURI reports whether u lies strictly under the base URI.
	IsValidURI(u *url.URL) bool
}

// FilesystemLocation stores content in a local directory tree.
type FilesystemLocation struct {
	id   string
	name string
	base *url.URL
}

var _ StorageLocation = (*FilesystemLocation)(nil)

// NewFilesystemLocation creates a filesystem location. base may be a file
// URI or an absolute path.
func NewFilesystemLocation(id, name, base string) (*FilesystemLocation, error) {
	if id == "" {
		return nil, ErrConfig.New("location without id")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, ErrConfig.New("location %q: invalid base %q: %v", id, base, err)
	}
	if u.Scheme == "" {
		u.Scheme = "file"
	}
	if u.Scheme != "file" || !path.IsAbs(u.Path) {
		return nil, ErrConfig.New("location %q: base must be an absolute file URI, got %q", id, base)
	}

	clean := path.Clean(u.Path)
	if clean != "/" {
		clean += "/"
	}
	return &FilesystemLocation{
		id:   id,
		name: name,
		base: &url.URL{Scheme: "file", Path: clean},
	}, nil
}

// ID implements StorageLocation.
func (loc *FilesystemLocation) ID() string { return loc.id }

// Name implements StorageLocation.
func (loc *FilesystemLocation) Name() string { return loc.name }

// Type implements StorageLocation.
func (loc *FilesystemLocation) Type() Type { return TypeFilesystem }

// BaseURI implements StorageLocation.
func (loc *FilesystemLocation) BaseURI() *url.URL {
	u := *loc.base
	return &u
}

// Root returns the local directory of the location.
func (loc *FilesystemLocation) Root() string {
	return filepath.FromSlash(loc.base.Path)
}

// StorageURI returns <base>/<hashed path>/<id>[/<component>].
func (loc *FilesystemLocation) StorageURI(p pid.PID) *url.URL {
	return &url.URL{
		Scheme: "file",
		Path:   path.Join(loc.base.Path, p.HashedPath(pid.HashedPathDepth), p.QualifiedID()),
	}
}

// IsValidURI implements StorageLocation.
func (loc *FilesystemLocation) IsValidURI(u *url.URL) bool {
	if u == nil || u.Scheme != "file" || !path.IsAbs(u.Path) {
		return false
	}
	clean := path.Clean(u.Path)
	return len(clean) > len(loc.base.Path) && strings.HasPrefix(clean, loc.base.Path)
}

// RelativePath returns the path of u relative to the location root.
func (loc *FilesystemLocation) RelativePath(u *url.URL) (string, error) {
	if !loc.IsValidURI(u) {
		return "", ErrUnknownLocation.New("%s is not within location %q", u, loc.id)
	}
	return filepath.FromSlash(strings.TrimPrefix(path.Clean(u.Path), loc.base.Path)), nil
}

// Path returns the local file path of u.
func (loc *FilesystemLocation) Path(u *url.URL) (string, error) {
	rel, err := loc.RelativePath(u)
	if err != nil {
		return "", err
	}
	return filepath.Join(loc.Root(), rel), nil
}
