// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package rdf implements the small subset of RDF the deposit pipeline
// needs: IRI, literal and blank node terms, triples, an in-memory model and
// an N-Triples codec.
package rdf

import (
	"strings"

	"github.com/zeebo/errs"
)

// Error is the default rdf error class
var Error = errs.Class("rdf error")

// Kind is the kind of an RDF term.
type Kind byte

// Term kinds.
const (
	KindIRI Kind = iota + 1
	KindLiteral
	KindBlank
)

// Term is an RDF term. The zero value is not a valid term and acts as a
// wildcard in patterns.
type Term struct {
	Kind     Kind
	Value    string
	Datatype string
	Lang     string
}

// IRI creates an IRI term.
func IRI(value string) Term { return Term{Kind: KindIRI, Value: value} }

// Literal creates a plain string literal.
func Literal(value string) Term { return Term{Kind: KindLiteral, Value: value} }

// TypedLiteral creates a literal with a datatype IRI.
func TypedLiteral(value, datatype string) Term {
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// LangLiteral creates a language tagged literal.
func LangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Lang: strings.ToLower(lang)}
}

// Blank creates a blank node.
func Blank(id string) Term { return Term{Kind: KindBlank, Value: id} }

// IsZero returns whether the term is unset.
func (t Term) IsZero() bool { return t.Kind == 0 }

// IsIRI returns whether the term is an IRI.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsLiteral returns whether the term is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// String returns the N-Triples form of the term.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := `"` + escaper.Replace(t.Value) + `"`
		switch {
		case t.Lang != "":
			s += "@" + t.Lang
		case t.Datatype != "" && t.Datatype != XSDString:
			s += "^^<" + t.Datatype + ">"
		}
		return s
	}
	return ""
}

func (t Term) validate(position string) error {
	switch t.Kind {
	case KindIRI:
		if t.Value == "" || strings.ContainsAny(t.Value, "<>\" \n\r\t{}|\\^`") {
			return Error.New("invalid %s IRI %q", position, t.Value)
		}
	case KindBlank:
		if t.Value == "" || strings.ContainsAny(t.Value, " \n\r\t.") {
			return Error.New("invalid %s blank node %q", position, t.Value)
		}
	case KindLiteral:
	default:
		return Error.New("missing %s", position)
	}
	return nil
}

// XML schema datatypes.
const (
	// XSDString is the implicit datatype of plain literals.
	XSDString  = "http://www.w3.org/2001/XMLSchema#string"
	XSDBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
)

var (
	escaper   = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`, `\n`, "\n", `\r`, "\r", `\t`, "\t")
)

// Triple is a single RDF statement.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// NewTriple creates a triple.
func NewTriple(s, p, o Term) Triple { return Triple{Subject: s, Predicate: p, Object: o} }

// Validate checks that the triple is well formed.
func (t Triple) Validate() error {
	if t.Subject.IsLiteral() {
		return Error.New("literal subject %s", t.Subject)
	}
	if !t.Predicate.IsZero() && !t.Predicate.IsIRI() {
		return Error.New("predicate must be an IRI: %s", t.Predicate)
	}
	return errs.Combine(
		t.Subject.validate("subject"),
		t.Predicate.validate("predicate"),
		t.Object.validate("object"),
	)
}

// String returns the triple as an N-Triples line without the newline.
func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}

// Matches reports whether t matches the pattern, where zero terms match anything.
func (t Triple) Matches(s, p, o Term) bool {
	return (s.IsZero() || s == t.Subject) &&
		(p.IsZero() || p == t.Predicate) &&
		(o.IsZero() || o == t.Object)
}
