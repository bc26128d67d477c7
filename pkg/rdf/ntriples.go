// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package rdf

import (
	"bufio"
	"io"
	"strings"
)

// ParseTriple parses one N-Triples statement.
func ParseTriple(line string) (Triple, error) {
	rest := strings.TrimSpace(line)

	var terms [3]Term
	for i := range terms {
		term, tail, err := parseTerm(rest)
		if err != nil {
			return Triple{}, Error.New("%q: %v", line, err)
		}
		terms[i] = term
		rest = strings.TrimLeft(tail, " \t")
	}
	if rest != "." {
		return Triple{}, Error.New("%q: expected terminating '.'", line)
	}

	triple := NewTriple(terms[0], terms[1], terms[2])
	if err := triple.Validate(); err != nil {
		return Triple{}, err
	}
	return triple, nil
}

func parseTerm(s string) (Term, string, error) {
	switch {
	case strings.HasPrefix(s, "<"):
		end := strings.IndexByte(s, '>')
		if end < 0 {
			return Term{}, "", Error.New("unterminated IRI")
		}
		return IRI(s[1:end]), s[end+1:], nil

	case strings.HasPrefix(s, "_:"):
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			return Term{}, "", Error.New("unterminated blank node")
		}
		return Blank(s[2:end]), s[end:], nil

	case strings.HasPrefix(s, `"`):
		end := 1
		for ; end < len(s); end++ {
			if s[end] == '\\' {
				end++
				continue
			}
			if s[end] == '"' {
				break
			}
		}
		if end >= len(s) {
			return Term{}, "", Error.New("unterminated literal")
		}
		lit := Literal(unescaper.Replace(s[1:end]))
		rest := s[end+1:]
		switch {
		case strings.HasPrefix(rest, "@"):
			stop := strings.IndexAny(rest, " \t")
			if stop < 0 {
				return Term{}, "", Error.New("unterminated language tag")
			}
			lit.Lang = strings.ToLower(rest[1:stop])
			rest = rest[stop:]
		case strings.HasPrefix(rest, "^^<"):
			stop := strings.IndexByte(rest, '>')
			if stop < 0 {
				return Term{}, "", Error.New("unterminated datatype")
			}
			if dt := rest[3:stop]; dt != XSDString {
				lit.Datatype = dt
			}
			rest = rest[stop+1:]
		}
		return lit, rest, nil
	}
	return Term{}, "", Error.New("unexpected input %q", s)
}

// Decode reads N-Triples from r into a new model. Blank lines and comments
// are skipped.
func Decode(r io.Reader) (*Model, error) {
	model := NewModel()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		triple, err := ParseTriple(line)
		if err != nil {
			return nil, err
		}
		model.Add(triple)
	}
	return model, Error.Wrap(scanner.Err())
}

// Encode writes the model as N-Triples in a stable order.
func (m *Model) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, triple := range m.Triples() {
		if _, err := bw.WriteString(triple.String() + "\n"); err != nil {
			return Error.Wrap(err)
		}
	}
	return Error.Wrap(bw.Flush())
}
