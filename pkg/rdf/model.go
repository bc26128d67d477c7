// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package rdf

import (
	"sort"
)

// Model is an in-memory set of triples. It is not safe for concurrent use.
type Model struct {
	triples map[string]Triple
}

// NewModel creates a model holding triples.
func NewModel(triples ...Triple) *Model {
	m := &Model{triples: make(map[string]Triple, len(triples))}
	m.Add(triples...)
	return m
}

// Add inserts triples, ignoring duplicates.
func (m *Model) Add(triples ...Triple) {
	for _, t := range triples {
		m.triples[t.String()] = t
	}
}

// Remove deletes triples.
func (m *Model) Remove(triples ...Triple) {
	for _, t := range triples {
		delete(m.triples, t.String())
	}
}

// Merge adds all triples of other.
func (m *Model) Merge(other *Model) {
	if other == nil {
		return
	}
	for k, t := range other.triples {
		m.triples[k] = t
	}
}

// Contains reports whether the triple is in the model.
func (m *Model) Contains(t Triple) bool {
	_, ok := m.triples[t.String()]
	return ok
}

// Len returns the number of triples.
func (m *Model) Len() int { return len(m.triples) }

// Triples returns all triples sorted by their N-Triples form.
func (m *Model) Triples() []Triple {
	keys := make([]string, 0, len(m.triples))
	for k := range m.triples {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]Triple, len(keys))
	for i, k := range keys {
		result[i] = m.triples[k]
	}
	return result
}

// Match returns the triples matching the pattern; zero terms are wildcards.
func (m *Model) Match(s, p, o Term) []Triple {
	var result []Triple
	for _, t := range m.Triples() {
		if t.Matches(s, p, o) {
			result = append(result, t)
		}
	}
	return result
}

// Object returns the first object of s p, if any.
func (m *Model) Object(s, p Term) (Term, bool) {
	matches := m.Match(s, p, Term{})
	if len(matches) == 0 {
		return Term{}, false
	}
	return matches[0].Object, true
}
