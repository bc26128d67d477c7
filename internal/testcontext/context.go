// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testcontext provides a context for tests that owns a temporary
// directory and a group of background goroutines.
package testcontext

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout is the timeout applied to every test context.
const DefaultTimeout = 3 * time.Minute

// Context is a context for a single test.
type Context struct {
	context.Context
	cancel context.CancelFunc

	group *errgroup.Group
	test  testing.TB

	once      sync.Once
	directory string
}

// New creates a new test context with DefaultTimeout.
func New(test testing.TB) *Context {
	return NewWithTimeout(test, DefaultTimeout)
}

// NewWithTimeout creates a new test context with the given timeout.
func NewWithTimeout(test testing.TB, timeout time.Duration) *Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	group, ctx := errgroup.WithContext(ctx)
	return &Context{
		Context: ctx,
		cancel:  cancel,
		group:   group,
		test:    test,
	}
}

// Go runs fn in a goroutine.
// Call Wait or Cleanup to check the result.
func (ctx *Context) Go(fn func() error) {
	ctx.test.Helper()
	ctx.group.Go(fn)
}

// Wait waits for all goroutines started with Go and fails on the first error.
func (ctx *Context) Wait() {
	ctx.test.Helper()
	if err := ctx.group.Wait(); err != nil {
		ctx.test.Fatal(err)
	}
}

// Check calls fn and checks result
func (ctx *Context) Check(fn func() error) {
	ctx.test.Helper()
	if err := fn(); err != nil {
		ctx.test.Fatal(err)
	}
}

// Dir returns a directory path inside the temporary directory, creating it.
func (ctx *Context) Dir(subs ...string) string {
	ctx.test.Helper()

	ctx.once.Do(func() {
		var err error
		ctx.directory, err = ioutil.TempDir("", filepath.Base(ctx.test.Name()))
		if err != nil {
			ctx.test.Fatal(err)
		}
	})

	dir := filepath.Join(append([]string{ctx.directory}, subs...)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		ctx.test.Fatal(err)
	}
	return dir
}

// File returns a filepath inside the temporary directory; the parent
// directory is created.
func (ctx *Context) File(subs ...string) string {
	ctx.test.Helper()

	if len(subs) == 0 {
		ctx.test.Fatal("expected more than one argument")
	}

	dir := ctx.Dir(subs[:len(subs)-1]...)
	return filepath.Join(dir, subs[len(subs)-1])
}

// WriteFile writes data to a file inside the temporary directory and
// returns its path.
func (ctx *Context) WriteFile(data []byte, subs ...string) string {
	ctx.test.Helper()

	path := ctx.File(subs...)
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		ctx.test.Fatal(err)
	}
	return path
}

// Cleanup waits everything to be completed,
// checks errors and tries to cleanup directories
func (ctx *Context) Cleanup() {
	ctx.test.Helper()

	defer ctx.deleteTemporary()
	defer ctx.cancel()

	if err := ctx.group.Wait(); err != nil {
		ctx.test.Fatal(err)
	}
}

func (ctx *Context) deleteTemporary() {
	if ctx.directory == "" {
		return
	}
	if err := os.RemoveAll(ctx.directory); err != nil {
		ctx.test.Fatal(err)
	}
}
