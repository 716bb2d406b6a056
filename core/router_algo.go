package core

import (
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
)

type RouterEvent int

// trace events

const (
	RouteImproved RouterEvent = iota
	RouteAdded
	CostOverflow
)

// warn events

const (
	UnknownNeighbour RouterEvent = iota + 1000
)

func (e RouterEvent) String() string {
	switch e {
	case RouteImproved:
		return "ROUTE_IMPROVED"
	case RouteAdded:
		return "ROUTE_ADDED"
	case CostOverflow:
		return "COST_OVERFLOW"
	case UnknownNeighbour:
		return "UNKNOWN_NEIGHBOUR"
	default:
		return "UNKNOWN_EVENT"
	}
}

// Router receives the side effects of the routing algorithm
type Router interface {
	Log(event RouterEvent, desc string, args ...any)
}

// HandleNeighbourVector relaxes the distance vector of s against the vector advertised by neighbour from.
// It returns true if any entry of the distance vector or the routing table changed.
func HandleNeighbourVector(s *state.RouterState, r Router, from state.NodeId, vec state.Vector) bool {
	// vectors from nodes that are not direct neighbours are never trusted
	linkCost, ok := s.Neighbours[from]
	if !ok {
		r.Log(UnknownNeighbour, "ignored vector from non-neighbour", "from", from)
		return false
	}

	changed := false
	for _, dest := range vec.Sorted() {
		if dest == s.Id {
			continue // never route to ourselves through a neighbour
		}
		adv := vec[dest]
		if adv >= state.INF {
			continue // the neighbour cannot reach dest, or it routes through us
		}

		// Cost(A, B) + Cost(B, D), a sum above INF is still a route
		candidate, ok := AddMetric(linkCost, adv)
		if !ok {
			r.Log(CostOverflow, "path cost does not fit a cost", "dest", dest, "via", from)
			continue
		}

		cur, known := s.Vector[dest]
		if !known {
			s.Vector[dest] = candidate
			s.Routes[dest] = from
			r.Log(RouteAdded, "new destination", "dest", dest, "cost", candidate, "nh", from)
			changed = true
		} else if candidate < cur {
			// ties keep the current next hop
			s.Vector[dest] = candidate
			s.Routes[dest] = from
			r.Log(RouteImproved, "shorter path", "dest", dest, "old", cur, "cost", candidate, "nh", from)
			changed = true
		}
	}
	return changed
}

// PoisonedVector returns the vector to advertise to target: every destination we reach through
// target is advertised as unreachable, so target never routes back through us.
func PoisonedVector(s *state.RouterState, target state.NodeId) state.Vector {
	poisoned := s.Vector.Clone()
	for dest, nh := range s.Routes {
		if nh == target {
			if _, ok := poisoned[dest]; ok {
				poisoned[dest] = state.INF
			}
		}
	}
	return poisoned
}
