package protocol

import (
	"fmt"
	"strings"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
)

// ParseInitialCosts parses the emulator greeting "<node>. <neighbour>:<cost>,...".
func ParseInitialCosts(msg string) (state.NodeId, []state.Link, error) {
	msg = strings.TrimSpace(msg)
	id, rest, _ := strings.Cut(msg, ". ")
	id = strings.TrimSuffix(id, ".")
	if id == "" {
		return "", nil, fmt.Errorf("bootstrap message %q has no node id", msg)
	}

	links := make([]state.Link, 0)
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return state.NodeId(id), links, nil
	}
	for _, pair := range strings.Split(rest, entrySep) {
		if !strings.Contains(pair, costSep) {
			continue
		}
		neigh, costStr, _ := strings.Cut(strings.TrimSpace(pair), costSep)
		cost, ok := parseCost(costStr)
		if !ok {
			return "", nil, fmt.Errorf("invalid cost %q for neighbour %s", costStr, neigh)
		}
		links = append(links, state.Link{Id: state.NodeId(neigh), Cost: cost})
	}
	return state.NodeId(id), links, nil
}

// FormatInitialCosts is the inverse of ParseInitialCosts.
func FormatInitialCosts(id state.NodeId, links []state.Link) string {
	parts := make([]string, 0, len(links))
	for _, l := range links {
		parts = append(parts, fmt.Sprintf("%s:%d", l.Id, l.Cost))
	}
	return fmt.Sprintf("%s. %s", id, strings.Join(parts, entrySep))
}
