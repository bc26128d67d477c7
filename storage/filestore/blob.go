// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package filestore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/errs"
)

// BlobReader reads a committed blob.
type BlobReader struct {
	*os.File
}

func newBlobReader(file *os.File) *BlobReader {
	return &BlobReader{file}
}

// Size returns how large is the blob.
func (blob *BlobReader) Size() (int64, error) {
	stat, err := blob.Stat()
	if err != nil {
		return 0, Error.Wrap(err)
	}
	return stat.Size(), nil
}

// BlobWriter writes a blob into a temporary file.
type BlobWriter struct {
	path string
	done bool

	*os.File
}

func newBlobWriter(path string, file *os.File) *BlobWriter {
	return &BlobWriter{path: path, File: file}
}

// Cancel discards the blob.
func (blob *BlobWriter) Cancel() error {
	if blob.done {
		return nil
	}
	blob.done = true
	err := blob.File.Close()
	removeErr := os.Remove(blob.File.Name())
	return Error.Wrap(errs.Combine(err, removeErr))
}

// Commit syncs the blob and moves it to its path, replacing any blob
// already stored there.
func (blob *BlobWriter) Commit() (err error) {
	if blob.done {
		return Error.New("blob already committed or canceled")
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, blob.Cancel())
		}
	}()

	if err := blob.File.Sync(); err != nil {
		return Error.Wrap(err)
	}
	if err := os.MkdirAll(filepath.Dir(blob.path), 0755); err != nil {
		return Error.Wrap(err)
	}
	if err := blob.File.Close(); err != nil {
		return Error.Wrap(err)
	}
	if err := os.Rename(blob.File.Name(), blob.path); err != nil {
		removeErr := os.Remove(blob.File.Name())
		blob.done = true
		return Error.Wrap(errs.Combine(err, removeErr))
	}
	blob.done = true
	return nil
}

// Size returns how much has been written so far.
func (blob *BlobWriter) Size() (int64, error) {
	pos, err := blob.Seek(0, io.SeekCurrent)
	return pos, Error.Wrap(err)
}
