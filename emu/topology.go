package emu

import (
	"fmt"
	"os"
	"slices"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/goccy/go-yaml"
)

// LinkCfg is an undirected link between two nodes.
type LinkCfg struct {
	A       state.NodeId   `yaml:"a"`
	B       state.NodeId   `yaml:"b"`
	Cost    uint32         `yaml:"cost"`
	Loss    float64        `yaml:"loss,omitempty"`    // probability a relayed frame is dropped
	Latency state.Duration `yaml:"latency,omitempty"` // delay added to every relayed frame
}

// Topology describes the emulated network. Clients are assigned to Nodes in order.
type Topology struct {
	Nodes []state.NodeId `yaml:"nodes"`
	Links []LinkCfg      `yaml:"links"`
}

func ReadTopology(path string) (*Topology, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	topo, err := ParseTopology(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return topo, nil
}

func ParseTopology(data []byte) (*Topology, error) {
	topo := &Topology{}
	err := yaml.Unmarshal(data, topo)
	if err != nil {
		return nil, err
	}
	err = TopologyValidator(topo)
	if err != nil {
		return nil, err
	}
	return topo, nil
}

func TopologyValidator(topo *Topology) error {
	if len(topo.Nodes) == 0 {
		return fmt.Errorf("topology has no nodes")
	}
	for i, id := range topo.Nodes {
		if err := state.NodeIdValidator(id); err != nil {
			return err
		}
		if slices.Contains(topo.Nodes[:i], id) {
			return fmt.Errorf("node %s is declared more than once", id)
		}
	}
	seen := make(map[state.Pair[state.NodeId, state.NodeId]]bool)
	for _, link := range topo.Links {
		for _, end := range []state.NodeId{link.A, link.B} {
			if !slices.Contains(topo.Nodes, end) {
				return fmt.Errorf("link %s-%s references unknown node %s", link.A, link.B, end)
			}
		}
		if link.A == link.B {
			return fmt.Errorf("node %s cannot be linked to itself", link.A)
		}
		if link.Cost >= state.INF {
			return fmt.Errorf("link %s-%s: cost %d must be below %d", link.A, link.B, link.Cost, state.INF)
		}
		if link.Loss < 0 || link.Loss > 1 {
			return fmt.Errorf("link %s-%s: loss %v must be within [0, 1]", link.A, link.B, link.Loss)
		}
		if link.Latency < 0 {
			return fmt.Errorf("link %s-%s: latency must not be negative", link.A, link.B)
		}
		key := linkKey(link.A, link.B)
		if seen[key] {
			return fmt.Errorf("link %s-%s is declared more than once", link.A, link.B)
		}
		seen[key] = true
	}
	return nil
}

func linkKey(a, b state.NodeId) state.Pair[state.NodeId, state.NodeId] {
	if b < a {
		a, b = b, a
	}
	return state.Pair[state.NodeId, state.NodeId]{V1: a, V2: b}
}

// Link returns the link between a and b, if any.
func (t *Topology) Link(a, b state.NodeId) (LinkCfg, bool) {
	key := linkKey(a, b)
	for _, link := range t.Links {
		if linkKey(link.A, link.B) == key {
			return link, true
		}
	}
	return LinkCfg{}, false
}

// Neighbours returns the direct links of id ordered by neighbour.
func (t *Topology) Neighbours(id state.NodeId) []state.Link {
	pairs := make([]state.Pair[state.NodeId, uint32], 0)
	for _, link := range t.Links {
		switch id {
		case link.A:
			pairs = append(pairs, state.Pair[state.NodeId, uint32]{V1: link.B, V2: link.Cost})
		case link.B:
			pairs = append(pairs, state.Pair[state.NodeId, uint32]{V1: link.A, V2: link.Cost})
		}
	}
	state.SortPairs(pairs)
	links := make([]state.Link, 0, len(pairs))
	for _, p := range pairs {
		links = append(links, state.Link{Id: p.V1, Cost: p.V2})
	}
	return links
}
