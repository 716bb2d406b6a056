package protocol

import (
	"testing"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInitialCosts(t *testing.T) {
	id, links, err := ParseInitialCosts("A. B:1,C:4\n")
	require.NoError(t, err)
	assert.Equal(t, state.NodeId("A"), id)
	assert.Equal(t, []state.Link{{Id: "B", Cost: 1}, {Id: "C", Cost: 4}}, links)
}

func TestParseInitialCosts_NoNeighbours(t *testing.T) {
	for _, msg := range []string{"A", "A.", "A. "} {
		id, links, err := ParseInitialCosts(msg)
		require.NoError(t, err, msg)
		assert.Equal(t, state.NodeId("A"), id, msg)
		assert.Empty(t, links, msg)
	}
}

func TestParseInitialCosts_SkipsFieldsWithoutCost(t *testing.T) {
	_, links, err := ParseInitialCosts("A. B:1,junk, C:2")
	require.NoError(t, err)
	assert.Equal(t, []state.Link{{Id: "B", Cost: 1}, {Id: "C", Cost: 2}}, links)
}

func TestParseInitialCosts_Invalid(t *testing.T) {
	_, _, err := ParseInitialCosts("")
	assert.ErrorContains(t, err, "no node id")

	_, _, err = ParseInitialCosts("A. B:one")
	assert.ErrorContains(t, err, "invalid cost")

	_, _, err = ParseInitialCosts("A. B:-1")
	assert.Error(t, err)
}

func TestFormatInitialCosts(t *testing.T) {
	links := []state.Link{{Id: "B", Cost: 1}, {Id: "C", Cost: 4}}
	msg := FormatInitialCosts("A", links)
	assert.Equal(t, "A. B:1,C:4", msg)

	id, back, err := ParseInitialCosts(msg)
	require.NoError(t, err)
	assert.Equal(t, state.NodeId("A"), id)
	assert.Equal(t, links, back)
}
