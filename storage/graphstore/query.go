// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package graphstore

import (
	"github.com/boxc/depositcore/pkg/rdf"
)

// Node is a position in a triple pattern: either a fixed term or a variable.
type Node struct {
	Term rdf.Term
	Var  string
}

// T creates a fixed pattern node.
func T(term rdf.Term) Node { return Node{Term: term} }

// V creates a variable pattern node.
func V(name string) Node { return Node{Var: name} }

// Pattern is a triple pattern.
type Pattern struct {
	S, P, O Node
}

// P creates a pattern.
func P(s, p, o Node) Pattern { return Pattern{S: s, P: p, O: o} }

// Binding maps variable names to terms.
type Binding map[string]rdf.Term

func (b Binding) resolve(n Node) rdf.Term {
	if n.Var == "" {
		return n.Term
	}
	return b[n.Var]
}

func (b Binding) extend(n Node, term rdf.Term) (Binding, bool) {
	if n.Var == "" {
		return b, true
	}
	if bound, ok := b[n.Var]; ok {
		return b, bound == term
	}
	next := make(Binding, len(b)+1)
	for k, v := range b {
		next[k] = v
	}
	next[n.Var] = term
	return next, true
}

// Select is a basic graph pattern query.
type Select struct {
	// Vars are the projected variables; all variables when empty.
	Vars []string
	// Where patterns are joined in order.
	Where []Pattern
	// Limit caps the number of rows when positive.
	Limit int
}

// Update deletes and inserts templates instantiated by every solution of
// Where. All deletions are applied before insertions. With an empty Where
// the templates must be fully bound.
type Update struct {
	Delete []Pattern
	Insert []Pattern
	Where  []Pattern
}

func (tx *Tx) solve(graph string, where []Pattern) ([]Binding, error) {
	solutions := []Binding{{}}
	for _, pattern := range where {
		var next []Binding
		for _, b := range solutions {
			matches, err := tx.Match(graph, b.resolve(pattern.S), b.resolve(pattern.P), b.resolve(pattern.O))
			if err != nil {
				return nil, err
			}
			for _, t := range matches {
				nb, ok := b.extend(pattern.S, t.Subject)
				if !ok {
					continue
				}
				if nb, ok = nb.extend(pattern.P, t.Predicate); !ok {
					continue
				}
				if nb, ok = nb.extend(pattern.O, t.Object); !ok {
					continue
				}
				next = append(next, nb)
			}
		}
		solutions = next
		if len(solutions) == 0 {
			break
		}
	}
	return solutions, nil
}

// Query evaluates a select query against the named graph.
func (tx *Tx) Query(graph string, q Select) ([]Binding, error) {
	solutions, err := tx.solve(graph, q.Where)
	if err != nil {
		return nil, err
	}

	rows := make([]Binding, 0, len(solutions))
	for _, solution := range solutions {
		if q.Limit > 0 && len(rows) >= q.Limit {
			break
		}
		if len(q.Vars) == 0 {
			rows = append(rows, solution)
			continue
		}
		row := make(Binding, len(q.Vars))
		for _, name := range q.Vars {
			if term, ok := solution[name]; ok {
				row[name] = term
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Update applies an update to the named graph. It returns how many triples
// were deleted and inserted.
func (tx *Tx) Update(graph string, u Update) (deleted, inserted int, err error) {
	if err := tx.check(true); err != nil {
		return 0, 0, err
	}
	solutions, err := tx.solve(graph, u.Where)
	if err != nil {
		return 0, 0, err
	}

	var removals, additions []rdf.Triple
	for _, b := range solutions {
		removals = append(removals, instantiate(b, u.Delete)...)
		additions = append(additions, instantiate(b, u.Insert)...)
	}

	if err := tx.Remove(graph, removals...); err != nil {
		return 0, 0, err
	}
	if err := tx.Add(graph, additions...); err != nil {
		return len(removals), 0, err
	}
	return len(removals), len(additions), nil
}

// instantiate skips templates left with unbound variables.
func instantiate(b Binding, templates []Pattern) []rdf.Triple {
	var result []rdf.Triple
	for _, tmpl := range templates {
		t := rdf.NewTriple(b.resolve(tmpl.S), b.resolve(tmpl.P), b.resolve(tmpl.O))
		if t.Subject.IsZero() || t.Predicate.IsZero() || t.Object.IsZero() {
			continue
		}
		result = append(result, t)
	}
	return result
}
