// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package transfer

import (
	"context"
	"io"
	"net/url"
	"sort"
	"sync"

	"github.com/zeebo/errs"

	"github.com/boxc/depositcore/internal/errs2"
	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/storagelocation"
)

// Resolver picks the storage location of an object.
type Resolver interface {
	GetStorageLocation(ctx context.Context, obj storagelocation.Object) (storagelocation.StorageLocation, error)
}

// Objects returns the object a transfer target belongs to. The object is
// consulted for an explicit storage location assignment.
type Objects func(target pid.PID) storagelocation.Object

// MultiSession dispatches each transfer to a session for the location the
// target object resolves to, opening sessions on first use.
type MultiSession struct {
	service  *Service
	resolver Resolver
	objects  Objects

	mu       sync.Mutex
	closed   bool
	sessions map[string]Session
}

var _ Session = (*MultiSession)(nil)

// OpenMulti opens a session that resolves a location per target. When
// objects is nil, targets have no explicit assignments.
func (service *Service) OpenMulti(resolver Resolver, objects Objects) *MultiSession {
	if objects == nil {
		objects = func(target pid.PID) storagelocation.Object {
			return storagelocation.StaticObject{ID: target}
		}
	}
	return &MultiSession{
		service:  service,
		resolver: resolver,
		objects:  objects,
		sessions: map[string]Session{},
	}
}

func (multi *MultiSession) session(ctx context.Context, target pid.PID) (Session, error) {
	loc, err := multi.resolver.GetStorageLocation(ctx, multi.objects(target.Object()))
	if err != nil {
		return nil, err
	}

	multi.mu.Lock()
	defer multi.mu.Unlock()
	if multi.closed {
		return nil, ErrClosed.New("multi-destination session")
	}
	if session, ok := multi.sessions[loc.ID()]; ok {
		return session, nil
	}
	session, err := multi.service.Open(loc)
	if err != nil {
		return nil, err
	}
	multi.sessions[loc.ID()] = session
	return session, nil
}

// Transfer implements Session.
func (multi *MultiSession) Transfer(ctx context.Context, target pid.PID, source *url.URL) (_ *url.URL, err error) {
	defer mon.Task()(&ctx)(&err)
	session, err := multi.session(ctx, target)
	if err != nil {
		return nil, err
	}
	return session.Transfer(ctx, target, source)
}

// TransferReplaceExisting implements Session.
func (multi *MultiSession) TransferReplaceExisting(ctx context.Context, target pid.PID, content io.Reader) (_ *url.URL, err error) {
	defer mon.Task()(&ctx)(&err)
	session, err := multi.session(ctx, target)
	if err != nil {
		return nil, err
	}
	return session.TransferReplaceExisting(ctx, target, content)
}

// Locations returns the ids of the locations sessions were opened for.
func (multi *MultiSession) Locations() []string {
	multi.mu.Lock()
	defer multi.mu.Unlock()
	ids := make([]string, 0, len(multi.sessions))
	for id := range multi.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every sub-session.
func (multi *MultiSession) Close() error {
	multi.mu.Lock()
	defer multi.mu.Unlock()
	if multi.closed {
		return nil
	}
	multi.closed = true

	group := errs2.NewGroup(0)
	for _, session := range multi.sessions {
		group.Go(session.Close)
	}
	return errs.Combine(group.Wait()...)
}
