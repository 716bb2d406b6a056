package emu

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareTopology = `
nodes: [A, B, C, D]
links:
  - {a: A, b: B, cost: 1}
  - {a: A, b: C, cost: 4}
  - {a: B, b: D, cost: 2}
  - {a: C, b: D, cost: 1, loss: 0.1, latency: 5ms}
`

func TestParseTopology(t *testing.T) {
	topo, err := ParseTopology([]byte(squareTopology))
	require.NoError(t, err)

	assert.Equal(t, []state.NodeId{"A", "B", "C", "D"}, topo.Nodes)
	assert.Equal(t, []state.Link{{Id: "B", Cost: 1}, {Id: "C", Cost: 4}}, topo.Neighbours("A"))
	assert.Equal(t, []state.Link{{Id: "B", Cost: 2}, {Id: "C", Cost: 1}}, topo.Neighbours("D"))

	link, ok := topo.Link("D", "C")
	require.True(t, ok)
	assert.Equal(t, 0.1, link.Loss)
	assert.Equal(t, 5*time.Millisecond, link.Latency.Duration())

	_, ok = topo.Link("A", "D")
	assert.False(t, ok)
}

func TestReadTopology(t *testing.T) {
	p := filepath.Join(t.TempDir(), "topo.yaml")
	require.NoError(t, os.WriteFile(p, []byte(squareTopology), 0600))
	topo, err := ReadTopology(p)
	require.NoError(t, err)
	assert.Len(t, topo.Links, 4)

	_, err = ReadTopology(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTopologyValidator(t *testing.T) {
	invalid := map[string]string{
		"no nodes":       `links: []`,
		"bad id":         `nodes: ["A|B"]`,
		"duplicate node": `nodes: [A, A]`,
		"unknown node":   "nodes: [A]\nlinks: [{a: A, b: B, cost: 1}]",
		"self link":      "nodes: [A]\nlinks: [{a: A, b: A, cost: 1}]",
		"infinite cost":  "nodes: [A, B]\nlinks: [{a: A, b: B, cost: 999}]",
		"bad loss":       "nodes: [A, B]\nlinks: [{a: A, b: B, cost: 1, loss: 1.5}]",
		"duplicate link": "nodes: [A, B]\nlinks: [{a: A, b: B, cost: 1}, {a: B, b: A, cost: 2}]",
	}
	for name, doc := range invalid {
		_, err := ParseTopology([]byte(doc))
		assert.Error(t, err, name)
	}

	_, err := ParseTopology([]byte("nodes: [A]"))
	assert.NoError(t, err)
}
