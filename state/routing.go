package state

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

type NodeId string

// Vector maps a destination to the best known cost from the node that owns it.
type Vector map[NodeId]uint32

// Link is a direct link announced at bootstrap.
type Link struct {
	Id   NodeId
	Cost uint32
}

func (v Vector) Clone() Vector {
	return maps.Clone(v)
}

// Sorted returns the destinations of the vector in ascending order.
func (v Vector) Sorted() []NodeId {
	return slices.Sorted(maps.Keys(v))
}

// RouterState access must be done only on a single Goroutine
type RouterState struct {
	Id NodeId
	// Neighbours holds the direct link cost to every neighbour, fixed after bootstrap.
	Neighbours map[NodeId]uint32
	// Vector is the distance vector of this node.
	Vector Vector
	// Routes maps a destination to its next hop.
	Routes map[NodeId]NodeId
}

// NewRouterState bootstraps the tables of node self from its direct links.
func NewRouterState(self NodeId, links []Link) (*RouterState, error) {
	if err := NodeIdValidator(self); err != nil {
		return nil, err
	}
	rs := &RouterState{
		Id:         self,
		Neighbours: make(map[NodeId]uint32, len(links)),
		Vector:     Vector{self: 0},
		Routes:     map[NodeId]NodeId{self: self},
	}
	for _, link := range links {
		if err := NodeIdValidator(link.Id); err != nil {
			return nil, fmt.Errorf("invalid neighbour: %w", err)
		}
		if link.Id == self {
			return nil, fmt.Errorf("node %s cannot be its own neighbour", self)
		}
		rs.Neighbours[link.Id] = link.Cost
		rs.Vector[link.Id] = link.Cost
		rs.Routes[link.Id] = link.Id
	}
	return rs, nil
}

func (s *RouterState) IsNeighbour(id NodeId) bool {
	_, ok := s.Neighbours[id]
	return ok
}

// NeighbourIds returns the neighbours of this node in ascending order.
func (s *RouterState) NeighbourIds() []NodeId {
	return slices.Sorted(maps.Keys(s.Neighbours))
}

func (s *RouterState) Destinations() []NodeId {
	return s.Vector.Sorted()
}

func (s *RouterState) Cost(dest NodeId) (uint32, bool) {
	c, ok := s.Vector[dest]
	return c, ok
}

func (s *RouterState) NextHop(dest NodeId) (NodeId, bool) {
	nh, ok := s.Routes[dest]
	return nh, ok
}

// StringRoutes formats the tables as "<dest>:<cost>:<next hop>" entries sorted by destination.
func (s *RouterState) StringRoutes() string {
	entries := make([]string, 0, len(s.Vector))
	for _, dest := range s.Destinations() {
		nh, ok := s.Routes[dest]
		if !ok {
			nh = "unknown"
		}
		entries = append(entries, fmt.Sprintf("%s:%d:%s", dest, s.Vector[dest], nh))
	}
	return strings.Join(entries, " ")
}

// Route is one entry of a table formatted by StringRoutes.
type Route struct {
	Dest    NodeId
	Cost    uint32
	NextHop NodeId
}

// ParseRoutes is the inverse of StringRoutes.
func ParseRoutes(line string) ([]Route, error) {
	routes := make([]Route, 0)
	for _, entry := range strings.Fields(line) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid route %q, expected <dest>:<cost>:<next hop>", entry)
		}
		cost, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid cost in route %q: %w", entry, err)
		}
		routes = append(routes, Route{
			Dest:    NodeId(parts[0]),
			Cost:    uint32(cost),
			NextHop: NodeId(parts[2]),
		})
	}
	return routes, nil
}

// RouteChange is published whenever a received vector changes the tables.
type RouteChange struct {
	Node  NodeId
	From  NodeId
	Table string
}
