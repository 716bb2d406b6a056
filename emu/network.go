package emu

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/perf"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/protocol"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"go.uber.org/multierr"
)

var ErrNetworkClosed = errors.New("network closed")

// Network accepts one client per topology node and relays every frame a client sends to all of its neighbours.
type Network struct {
	Topology *Topology
	Log      *slog.Logger

	mu      sync.Mutex
	clients map[state.NodeId]*client
	next    int
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

type client struct {
	id    state.NodeId
	conn  net.Conn
	wmu   sync.Mutex
	ready atomic.Bool // set once the client sent its first frame
}

func (c *client) write(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return protocol.WriteFrame(c.conn, data)
}

func NewNetwork(topo *Topology, log *slog.Logger) *Network {
	return &Network{
		Topology: topo,
		Log:      log,
		clients:  make(map[state.NodeId]*client),
		done:     make(chan struct{}),
	}
}

// Serve accepts clients on ln until ctx is done or the network is closed. ln is closed on return.
func (n *Network) Serve(ctx context.Context, ln net.Listener) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		ln.Close()
		return ErrNetworkClosed
	}
	n.wg.Add(2)
	n.mu.Unlock()
	defer n.wg.Done()

	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-n.done:
		}
		ln.Close()
	}()

	n.Log.Info("network is listening", "addr", ln.Addr(), "nodes", len(n.Topology.Nodes))
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-n.done:
				return nil
			default:
				ln.Close()
				return err
			}
		}
		n.attach(conn)
	}
}

func (n *Network) attach(conn net.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || n.next >= len(n.Topology.Nodes) {
		n.Log.Warn("rejected client, no free node", "remote", conn.RemoteAddr())
		conn.Close()
		return
	}
	id := n.Topology.Nodes[n.next]
	n.next++

	msg := protocol.FormatInitialCosts(id, n.Topology.Neighbours(id))
	_, err := conn.Write([]byte(msg))
	if err != nil {
		n.Log.Warn("failed to send initial costs", "node", id, "error", err)
		conn.Close()
		return
	}
	c := &client{id: id, conn: conn}
	n.clients[id] = c
	n.Log.Info("node attached", "node", id, "remote", conn.RemoteAddr())

	n.wg.Add(1)
	go n.serveClient(c)
}

func (n *Network) serveClient(c *client) {
	defer n.wg.Done()
	defer func() {
		n.mu.Lock()
		if n.clients[c.id] == c {
			delete(n.clients, c.id)
		}
		n.mu.Unlock()
		c.conn.Close()
	}()
	for {
		data, err := protocol.ReadFrame(c.conn)
		if err != nil {
			select {
			case <-n.done:
			default:
				n.Log.Info("node detached", "node", c.id, "reason", err)
			}
			return
		}
		c.ready.Store(true)
		n.relay(c, data)
	}
}

// relay forwards data from src to every ready neighbour, applying the loss and latency of each link.
// Frames carry no recipient, so a vector poisoned for one neighbour reaches all of them.
func (n *Network) relay(src *client, data []byte) {
	for _, neigh := range n.Topology.Neighbours(src.id) {
		n.mu.Lock()
		dst, ok := n.clients[neigh.Id]
		n.mu.Unlock()
		if !ok || !dst.ready.Load() {
			continue
		}
		link, _ := n.Topology.Link(src.id, neigh.Id)
		if link.Loss > 0 && rand.Float64() < link.Loss {
			perf.DroppedPerSecond.Add(1)
			continue
		}
		if link.Latency == 0 {
			n.deliver(dst, data)
			continue
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			timer := time.NewTimer(link.Latency.Duration())
			defer timer.Stop()
			select {
			case <-n.done:
			case <-timer.C:
				n.deliver(dst, data)
			}
		}()
	}
}

func (n *Network) deliver(dst *client, data []byte) {
	err := dst.write(data)
	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			n.Log.Debug("failed to relay frame", "to", dst.id, "error", err)
		}
		return
	}
	perf.RelayedPerSecond.Add(1)
}

// Attached returns the number of clients currently connected.
func (n *Network) Attached() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

// Close disconnects every client and waits for the network to wind down. Only the first call has an effect.
func (n *Network) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.done)
	var err error
	for _, c := range n.clients {
		err = multierr.Append(err, c.conn.Close())
	}
	n.mu.Unlock()

	n.wg.Wait()
	return err
}
