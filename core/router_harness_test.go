package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Event RouterEvent
	Args  []any
}

type RouterHarness struct {
	actions []HarnessEvent
}

func (h *RouterHarness) Log(event RouterEvent, desc string, args ...any) {
	h.actions = append(h.actions, HarnessEvent{
		Event: event,
		Args:  args,
	})
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Event.String()
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

func (h *RouterHarness) GetActions() HarnessEvents {
	x := h.actions
	h.actions = make([]HarnessEvent, 0)
	return x
}

// contains matches events whose args start with the given key/value pairs
func (e HarnessEvents) contains(event RouterEvent, args ...any) bool {
	for _, ev := range e {
		if ev.Event != event || len(ev.Args) < len(args) {
			continue
		}
		if cmp.Equal(ev.Args[:len(args)], args) {
			return true
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, event RouterEvent, args ...any) {
	t.Helper()
	if e.contains(event, args...) {
		return
	}
	t.Fatal("Expected event not found: ", event, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, event RouterEvent, args ...any) {
	t.Helper()
	if e.contains(event, args...) {
		t.Fatal("Unexpected event found: ", event, " with args: ", args, " in ", e)
	}
}

func MakeRouterState(t *testing.T, id state.NodeId, links ...state.Link) *state.RouterState {
	t.Helper()
	rs, err := state.NewRouterState(id, links)
	if err != nil {
		t.Fatal(err)
	}
	return rs
}

func (h *RouterHarness) NeighUpdate(rs *state.RouterState, neigh state.NodeId, vec state.Vector) bool {
	return HandleNeighbourVector(rs, h, neigh, vec)
}
