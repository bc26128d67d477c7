// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package filestore

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"
)

var mon = monkit.Package()

var (
	// Error is the default filestore error class
	Error = errs.Class("filestore error")
	// ErrInvalidPath is returned for paths escaping the store root
	ErrInvalidPath = errs.Class("invalid blob path")
)

// tempDir holds blobs that are still being written. It lives inside the
// root so committing is a rename on the same filesystem.
const tempDir = ".tmp"

// Store keeps files under a root directory. Files become visible only once
// they are fully written and committed.
type Store struct {
	root string
}

// NewAt creates a new disk blob store in the specified directory
func NewAt(root string) (*Store, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := os.MkdirAll(filepath.Join(root, tempDir), 0700); err != nil {
		return nil, Error.Wrap(err)
	}
	return &Store{root: root}, nil
}

// Root returns the root directory of the store.
func (store *Store) Root() string { return store.root }

// Path returns the absolute path of a blob.
func (store *Store) Path(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) ||
		clean == tempDir || strings.HasPrefix(clean, tempDir+string(filepath.Separator)) {
		return "", ErrInvalidPath.New("%q", rel)
	}
	return filepath.Join(store.root, clean), nil
}

// Create starts writing a blob. Nothing is visible at the blob path until
// the writer is committed.
func (store *Store) Create(ctx context.Context, rel string) (_ *BlobWriter, err error) {
	defer mon.Task()(&ctx)(&err)
	path, err := store.Path(rel)
	if err != nil {
		return nil, err
	}
	file, err := ioutil.TempFile(filepath.Join(store.root, tempDir), "blob-")
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return newBlobWriter(path, file), nil
}

// Open opens a committed blob.
func (store *Store) Open(ctx context.Context, rel string) (_ *BlobReader, err error) {
	defer mon.Task()(&ctx)(&err)
	path, err := store.Path(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, Error.Wrap(err)
	}
	return newBlobReader(file), nil
}

// Delete deletes a blob. Deleting a missing blob is not an error.
func (store *Store) Delete(ctx context.Context, rel string) (err error) {
	defer mon.Task()(&ctx)(&err)
	path, err := store.Path(rel)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return Error.Wrap(err)
}
