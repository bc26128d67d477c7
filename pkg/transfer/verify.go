// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package transfer

import (
	"context"
	// registers sha256 with go-digest
	_ "crypto/sha256"
	"io"

	digest "github.com/opencontainers/go-digest"
)

// Verifier checks a stored copy against the digest of its source.
type Verifier interface {
	Verify(ctx context.Context, expected digest.Digest, stored io.Reader) error
}

// DigestVerifier recomputes the digest of the stored file.
type DigestVerifier struct{}

// Verify implements Verifier.
func (DigestVerifier) Verify(ctx context.Context, expected digest.Digest, stored io.Reader) (err error) {
	defer mon.Task()(&ctx)(&err)
	if err := expected.Validate(); err != nil {
		return Error.Wrap(err)
	}

	verifier := expected.Verifier()
	if _, err := io.Copy(verifier, stored); err != nil {
		return Error.Wrap(err)
	}
	if !verifier.Verified() {
		return ErrVerification.New("stored copy does not match %s", expected)
	}
	return nil
}
