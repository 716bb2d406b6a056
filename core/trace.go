package core

import (
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/dustin/go-broadcast"
)

// RouteTrace fans out every state.RouteChange of a session to its subscribers.
// Subscribers must keep draining their channel, otherwise the session stalls.
type RouteTrace struct {
	broadcast.Broadcaster
}

func NewRouteTrace() *RouteTrace {
	return &RouteTrace{
		Broadcaster: broadcast.NewBroadcaster(1024),
	}
}

func (t *RouteTrace) Publish(change state.RouteChange) {
	t.Submit(change)
}
