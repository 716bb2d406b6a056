package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/perf"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/protocol"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/multierr"
)

var ErrSessionRunning = errors.New("session is already running")

// Session is one routing node attached to the network. Its router state must only be accessed
// from the goroutine that calls Start, Step and Run.
type Session struct {
	*state.Env
	Router    *state.RouterState
	Transport Transport
	Journal   *Journal
	Trace     *RouteTrace

	// heard holds the neighbours we received a vector from within SilenceTTL
	heard   *ttlcache.Cache[state.NodeId, struct{}]
	silent  map[state.NodeId]bool
	running atomic.Bool
	stopped atomic.Bool
	// done is closed when Run returns
	done chan struct{}
}

func NewSession(e *state.Env, t Transport) *Session {
	return &Session{
		Env:       e,
		Transport: t,
		Trace:     NewRouteTrace(),
		silent:    make(map[state.NodeId]bool),
		done:      make(chan struct{}),
	}
}

// Start bootstraps the router state from the initial costs announced by the network
// and records the initial table.
func (s *Session) Start() error {
	id, links, err := protocol.ParseInitialCosts(s.Transport.InitialCosts())
	if err != nil {
		return fmt.Errorf("invalid bootstrap message: %w", err)
	}
	rs, err := state.NewRouterState(id, links)
	if err != nil {
		return fmt.Errorf("invalid bootstrap message: %w", err)
	}
	s.Router = rs
	s.Env.Log = s.Env.Log.With("node", string(id))

	s.heard = ttlcache.New[state.NodeId, struct{}](
		ttlcache.WithTTL[state.NodeId, struct{}](s.SilenceTTL.Duration()),
		ttlcache.WithDisableTouchOnHit[state.NodeId, struct{}](),
	)
	for _, neigh := range rs.NeighbourIds() {
		// every neighbour gets one ttl of grace before it is reported silent
		s.heard.Set(neigh, struct{}{}, ttlcache.DefaultTTL)
	}

	journal, err := OpenJournal(s.LogDir, id)
	if err != nil {
		return err
	}
	s.Journal = journal

	s.Env.Log.Info("bootstrapped", "neighbours", len(rs.Neighbours), "journal", journal.Path)
	s.Env.Log.Debug("initial table", "table", rs.StringRoutes())
	return s.Journal.Record(rs)
}

// Step sends one poisoned vector to every neighbour, then waits at most RecvTimeout for a single
// inbound vector and applies it.
func (s *Session) Step() error {
	start := s.Clock.Now()
	defer func() {
		perf.StepLatency.Add(float64(s.Clock.Since(start).Microseconds()))
	}()

	err := s.broadcast()
	if err != nil {
		return err
	}

	msg, ok, err := s.Transport.Recv(s.Context, s.RecvTimeout.Duration())
	if err != nil {
		return err
	}
	if ok {
		err = s.handleMessage(msg)
		if err != nil {
			return err
		}
	}
	s.checkSilence()
	return nil
}

func (s *Session) broadcast() error {
	for _, neigh := range s.Router.NeighbourIds() {
		msg := protocol.EncodeVector(s.Router.Id, PoisonedVector(s.Router, neigh))
		err := s.Transport.Send(msg)
		if errors.Is(err, ErrTransportClosed) {
			return err
		}
		if err != nil {
			s.Env.Log.Warn("failed to send vector", "to", neigh, "error", err)
			continue
		}
		perf.SentVectorPerSecond.Add(1)
	}
	return nil
}

func (s *Session) handleMessage(msg []byte) error {
	upd, ok := protocol.DecodeVector(msg)
	if !ok {
		perf.DroppedPerSecond.Add(1)
		s.Env.Log.Debug("dropped malformed vector", "len", len(msg))
		return nil
	}
	perf.RecvVectorPerSecond.Add(1)

	if s.Router.IsNeighbour(upd.Sender) {
		s.heard.Set(upd.Sender, struct{}{}, ttlcache.DefaultTTL)
		if s.silent[upd.Sender] {
			delete(s.silent, upd.Sender)
			s.Env.Log.Info("neighbour is advertising again", "neigh", upd.Sender)
		}
	}

	if !HandleNeighbourVector(s.Router, s, upd.Sender, upd.Vector) {
		return nil
	}
	perf.RouteChanges.Add(1)
	err := s.Journal.Record(s.Router)
	if err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	table := s.Router.StringRoutes()
	s.Env.Log.Debug("table changed", "from", upd.Sender, "table", table)
	s.Trace.Publish(state.RouteChange{
		Node:  s.Router.Id,
		From:  upd.Sender,
		Table: table,
	})
	return nil
}

func (s *Session) checkSilence() {
	s.heard.DeleteExpired()
	for _, neigh := range s.Router.NeighbourIds() {
		if s.silent[neigh] || s.heard.Get(neigh) != nil {
			continue
		}
		s.silent[neigh] = true
		s.Env.Log.Warn("neighbour silent", "neigh", neigh, "for", s.SilenceTTL.String())
	}
}

// Run steps the session once per UpdateInterval until the context is cancelled. It may only be
// called once.
func (s *Session) Run() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	defer close(s.done)
	if s.stopped.Load() {
		return nil
	}

	ticker := s.Clock.Ticker(s.UpdateInterval.Duration())
	defer ticker.Stop()
	for {
		err := s.Step()
		if err != nil {
			if s.Context.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-s.Context.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Stop cancels the session and closes the transport, waits for Run to return, then releases the
// journal and the trace. Only the first call has an effect.
func (s *Session) Stop() error {
	if s.stopped.Swap(true) {
		return nil
	}
	s.Cancel(context.Canceled)

	var err error
	if s.Transport != nil {
		// unblocks a Send stuck on a slow peer
		err = multierr.Append(err, s.Transport.Close())
	}
	if s.running.Load() {
		<-s.done
	}
	if s.Journal != nil {
		err = multierr.Append(err, s.Journal.Close())
	}
	err = multierr.Append(err, s.Trace.Close())
	if s.heard != nil {
		s.heard.DeleteAll()
	}

	if s.Router != nil {
		s.Env.Log.Info("node terminated", "reason", context.Cause(s.Context), "table", s.Router.StringRoutes())
	} else {
		s.Env.Log.Info("node terminated before bootstrap", "reason", context.Cause(s.Context))
	}
	return err
}

func (s *Session) Log(event RouterEvent, desc string, args ...any) {
	s.Env.Log.Debug(fmt.Sprintf("%s %s", event.String(), desc), args...)
}
