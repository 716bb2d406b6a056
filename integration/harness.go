//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/core"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/emu"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Triggered() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}
func (s Signal) Wait() {
	<-s
}

type VirtualLink struct {
	h   *VirtualHarness
	idx int
}

func (v *VirtualLink) WithLatency(lat time.Duration) *VirtualLink {
	v.h.Topology.Links[v.idx].Latency = state.Duration(lat)
	return v
}

func (v *VirtualLink) WithPacketLoss(loss float64) *VirtualLink {
	v.h.Topology.Links[v.idx].Loss = loss
	return v
}

// VirtualHarness runs one session per topology node against an emulated network on the loopback interface.
type VirtualHarness struct {
	Topology emu.Topology
	Dir      string
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Net      *emu.Network
	Sessions []*core.Session
	// OnChange is called from a separate goroutine for every route change of any node, set it before Start
	OnChange func(change state.RouteChange)
	Verbose  bool

	errs chan error
	runs sync.WaitGroup
	subs sync.WaitGroup
	chs  map[*core.Session]chan any
}

func (v *VirtualHarness) NewNode(id state.NodeId) {
	v.Topology.Nodes = append(v.Topology.Nodes, id)
}

func (v *VirtualHarness) AddLink(a, b state.NodeId, cost uint32) *VirtualLink {
	v.Topology.Links = append(v.Topology.Links, emu.LinkCfg{A: a, B: b, Cost: cost})
	return &VirtualLink{h: v, idx: len(v.Topology.Links) - 1}
}

func (v *VirtualHarness) logger() *slog.Logger {
	if v.Verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Start attaches every node in declaration order. Errors of running nodes are sent on the returned channel.
func (v *VirtualHarness) Start() (chan error, error) {
	err := emu.TopologyValidator(&v.Topology)
	if err != nil {
		return nil, err
	}
	if v.Dir == "" {
		v.Dir, err = os.MkdirTemp("", "dvr-harness")
		if err != nil {
			return nil, err
		}
	}
	v.Context, v.Cancel = context.WithCancelCause(context.Background())
	v.errs = make(chan error, 128) // a large number so we dont get blocked

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	v.Net = emu.NewNetwork(&v.Topology, v.logger())
	v.runs.Add(1)
	go func() {
		defer v.runs.Done()
		err := v.Net.Serve(v.Context, ln)
		if err != nil {
			v.errs <- err
		}
	}()

	for range v.Topology.Nodes {
		cfg := state.DefaultLocalCfg()
		cfg.LogDir = v.Dir
		cfg.UpdateInterval = state.Duration(state.UpdateDelay / 10)
		cfg.RecvTimeout = state.Duration(state.UpdateDelay / 20)
		e := state.NewEnv(v.Context, cfg, v.logger())

		t, err := core.DialNetwork(e, ln.Addr().String())
		if err != nil {
			return v.errs, err
		}
		s := core.NewSession(e, t)
		v.Sessions = append(v.Sessions, s)
		err = s.Start()
		if err != nil {
			return v.errs, err
		}
		if v.OnChange != nil {
			v.subscribe(s)
		}
		v.runs.Add(1)
		go func() {
			defer v.runs.Done()
			err := s.Run()
			if err != nil {
				v.errs <- fmt.Errorf("node %s: %w", s.Router.Id, err)
			}
		}()
	}
	return v.errs, nil
}

func (v *VirtualHarness) subscribe(s *core.Session) {
	ch := make(chan any, 16)
	if v.chs == nil {
		v.chs = make(map[*core.Session]chan any)
	}
	v.chs[s] = ch
	s.Trace.Register(ch)
	v.subs.Add(1)
	go func() {
		defer v.subs.Done()
		for {
			select {
			case <-v.Context.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				v.OnChange(ev.(state.RouteChange))
			}
		}
	}()
}

// Table returns the last table recorded by node id, or "" if none was recorded yet.
func (v *VirtualHarness) Table(id state.NodeId) string {
	data, err := os.ReadFile(core.JournalPath(v.Dir, id))
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	return lines[len(lines)-1]
}

// Costs returns the costs in the last table recorded by node id.
func (v *VirtualHarness) Costs(id state.NodeId) map[state.NodeId]uint32 {
	routes, err := state.ParseRoutes(v.Table(id))
	if err != nil {
		return nil
	}
	costs := make(map[state.NodeId]uint32)
	for _, r := range routes {
		costs[r.Dest] = r.Cost
	}
	return costs
}

// ShortestCosts computes the converged costs of every node from the topology.
func (v *VirtualHarness) ShortestCosts() map[state.NodeId]map[state.NodeId]uint32 {
	dist := make(map[state.NodeId]map[state.NodeId]uint32)
	for _, a := range v.Topology.Nodes {
		dist[a] = map[state.NodeId]uint32{a: 0}
		for _, l := range v.Topology.Neighbours(a) {
			dist[a][l.Id] = l.Cost
		}
	}
	for _, k := range v.Topology.Nodes {
		for _, i := range v.Topology.Nodes {
			for _, j := range v.Topology.Nodes {
				ik, ok1 := dist[i][k]
				kj, ok2 := dist[k][j]
				if !ok1 || !ok2 {
					continue
				}
				if cur, ok := dist[i][j]; !ok || ik+kj < cur {
					dist[i][j] = ik + kj
				}
			}
		}
	}
	return dist
}

// Stop stops every node, then the network.
func (v *VirtualHarness) Stop() {
	for _, s := range v.Sessions {
		if ch, ok := v.chs[s]; ok {
			// the trace can no longer be used once the session stopped
			s.Trace.Unregister(ch)
		}
		err := s.Stop()
		if err != nil {
			fmt.Printf("failed to stop node: %v\n", err)
		}
	}
	v.Cancel(fmt.Errorf("stopping harness"))
	if v.Net != nil {
		err := v.Net.Close()
		if err != nil {
			fmt.Printf("failed to stop network: %v\n", err)
		}
	}
	v.runs.Wait()
	v.subs.Wait()
}
