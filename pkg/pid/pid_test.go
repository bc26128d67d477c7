// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package pid_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boxc/depositcore/pkg/pid"
)

func TestParseRoundTrip(t *testing.T) {
	p := pid.New()

	parsed, err := pid.Parse(p.URI())
	require.NoError(t, err)
	require.Equal(t, p, parsed)

	parsed, err = pid.Parse(p.ID())
	require.NoError(t, err)
	require.Equal(t, p, parsed)

	comp, err := p.WithComponent("datafs/original_file")
	require.NoError(t, err)
	parsed, err = pid.Parse(comp.URI())
	require.NoError(t, err)
	require.Equal(t, comp, parsed)
	require.Equal(t, p, parsed.Object())
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "/", "not-a-uuid", pid.URIBase} {
		_, err := pid.Parse(s)
		require.Error(t, err, s)
	}

	for _, component := range []string{"", ".", "..", "../escape", "a/../../b", "a//b", "a/./b", "a/.."} {
		_, err := pid.New().WithComponent(component)
		require.Error(t, err, component)
	}

	id := pid.New().ID()
	_, err := pid.Parse(id + "/../escape")
	require.Error(t, err)
}

func TestRoot(t *testing.T) {
	root, err := pid.Parse(pid.RootID)
	require.NoError(t, err)
	require.True(t, root.IsRoot())
	require.Equal(t, pid.Root(), root)
}

func TestHashedPath(t *testing.T) {
	p := pid.MustFromID("AB12cd34-5678-90ef-aaaa-bbbbccccdddd")
	require.Equal(t, "ab12cd34-5678-90ef-aaaa-bbbbccccdddd", p.ID())
	require.Equal(t, "ab/12/cd/34", p.HashedPath(pid.HashedPathDepth))
	require.Equal(t, "ab", p.HashedPath(1))
	require.Equal(t, p.ID(), p.Dir())
}
