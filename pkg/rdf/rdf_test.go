// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package rdf_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boxc/depositcore/internal/testrand"
	"github.com/boxc/depositcore/pkg/rdf"
)

func TestParseTriple(t *testing.T) {
	cases := []struct {
		line string
		want rdf.Triple
	}{
		{
			line: `<http://a> <http://p> <http://b> .`,
			want: rdf.NewTriple(rdf.IRI("http://a"), rdf.IRI("http://p"), rdf.IRI("http://b")),
		},
		{
			line: `_:b0 <http://p> "say \"hi\"\nthere"@EN .`,
			want: rdf.NewTriple(rdf.Blank("b0"), rdf.IRI("http://p"), rdf.LangLiteral("say \"hi\"\nthere", "en")),
		},
		{
			line: `<http://a> <http://p> "12"^^<http://www.w3.org/2001/XMLSchema#int> .`,
			want: rdf.NewTriple(rdf.IRI("http://a"), rdf.IRI("http://p"), rdf.TypedLiteral("12", "http://www.w3.org/2001/XMLSchema#int")),
		},
		{
			line: `<http://a> <http://p> "plain"^^<http://www.w3.org/2001/XMLSchema#string> .`,
			want: rdf.NewTriple(rdf.IRI("http://a"), rdf.IRI("http://p"), rdf.Literal("plain")),
		},
	}

	for _, c := range cases {
		got, err := rdf.ParseTriple(c.line)
		require.NoError(t, err, c.line)
		require.Equal(t, c.want, got)

		again, err := rdf.ParseTriple(got.String())
		require.NoError(t, err)
		require.Equal(t, got, again)
	}
}

func TestParseTripleInvalid(t *testing.T) {
	for _, line := range []string{
		``,
		`<http://a> <http://p> <http://b>`,
		`"lit" <http://p> <http://b> .`,
		`<http://a> "p" <http://b> .`,
		`<http://a> <http://p> "open .`,
		`<http://a b> <http://p> <http://b> .`,
	} {
		_, err := rdf.ParseTriple(line)
		require.Error(t, err, line)
	}
}

func TestModel(t *testing.T) {
	a, b := rdf.IRI("http://a"), rdf.IRI("http://b")
	p := rdf.IRI("http://p")

	m := rdf.NewModel(rdf.NewTriple(a, p, b), rdf.NewTriple(a, p, b))
	require.Equal(t, 1, m.Len())

	m.Add(rdf.NewTriple(b, p, rdf.Literal("x")))
	require.Len(t, m.Match(rdf.Term{}, p, rdf.Term{}), 2)
	require.Len(t, m.Match(a, rdf.Term{}, rdf.Term{}), 1)

	obj, ok := m.Object(b, p)
	require.True(t, ok)
	require.Equal(t, rdf.Literal("x"), obj)

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))
	decoded, err := rdf.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, m.Triples(), decoded.Triples())

	m.Remove(rdf.NewTriple(a, p, b))
	require.False(t, m.Contains(rdf.NewTriple(a, p, b)))
}

func TestEncodeEscapedLiterals(t *testing.T) {
	p := rdf.IRI("http://purl.org/dc/terms/description")

	m := rdf.NewModel()
	for i, id := range testrand.PIDs(20) {
		m.Add(rdf.NewTriple(rdf.Resource(id), p, testrand.Literal(i*5)))
	}

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))
	decoded, err := rdf.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, m.Triples(), decoded.Triples())
}
