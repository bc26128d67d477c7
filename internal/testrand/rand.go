// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testrand implements generating random content for tests.
package testrand

import (
	"io"
	"math/rand"

	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/rdf"
)

// Intn returns, as an int, a non-negative pseudo-random number in [0,n).
// It panics if n <= 0.
func Intn(n int) int {
	return rand.Intn(n)
}

// Read reads pseudo-random data into data.
func Read(data []byte) {
	const newSourceThreshold = 64
	if len(data) < newSourceThreshold {
		_, _ = rand.Read(data)
		return
	}

	src := rand.NewSource(rand.Int63())
	r := rand.New(src)
	_, _ = r.Read(data)
}

// BytesN generates size amount of random data.
func BytesN(size int) []byte {
	data := make([]byte, size)
	Read(data)
	return data
}

// Reader creates a new random data reader.
func Reader() io.Reader {
	return rand.New(rand.NewSource(rand.Int63()))
}

// PIDs creates n random object ids.
func PIDs(n int) []pid.PID {
	ids := make([]pid.PID, n)
	for i := range ids {
		ids[i] = pid.New()
	}
	return ids
}

const letters = "abcdefghijklmnopqrstuvwxyz ABCDEFGHIJKLMNOPQRSTUVWXYZ\"\\\n\t"

// Literal creates a random literal, including characters that need
// escaping in N-Triples.
func Literal(size int) rdf.Term {
	b := make([]byte, size)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return rdf.Literal(string(b))
}
