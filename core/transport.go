package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/perf"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/protocol"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/benbjohnson/clock"
)

var ErrTransportClosed = errors.New("transport closed")

// Transport is the link between this node and the network emulator.
type Transport interface {
	// InitialCosts returns the bootstrap message received when the connection was established.
	InitialCosts() string
	// Send delivers one message to the network, without acknowledgement.
	Send(msg []byte) error
	// Recv waits at most timeout for one message. ok is false if nothing arrived in time.
	Recv(ctx context.Context, timeout time.Duration) (msg []byte, ok bool, err error)
	// Close may be called while Send or Recv is in progress.
	Close() error
}

// NetTransport speaks to the emulator over TCP. Every message is framed with a 4-byte big-endian length.
// At most one message per sender is kept pending: a newer vector from the same sender replaces the one
// that was not received yet, so a node that receives slower than its neighbours send never falls behind.
type NetTransport struct {
	conn    net.Conn
	initMsg string
	clock   clock.Clock
	mutex   sync.Mutex // guards writes to conn
	once    sync.Once
	wg      sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[state.NodeId][]byte
	order     []state.NodeId // senders with a pending message, oldest first
	readErr   error
	notify    chan struct{}
}

// DialNetwork connects to the emulator at addr and reads the bootstrap message.
func DialNetwork(e *state.Env, addr string) (*NetTransport, error) {
	dialer := net.Dialer{Timeout: e.DialTimeout.Duration()}
	conn, err := dialer.DialContext(e.Context, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network at %s: %w", addr, err)
	}
	e.Log.Debug("connected to network", "addr", conn.RemoteAddr())
	return NewNetTransport(conn, e.Clock, e.DialTimeout.Duration())
}

// NewNetTransport takes ownership of conn. The bootstrap message is read with a single read,
// as the emulator sends it unframed.
func NewNetTransport(conn net.Conn, clk clock.Clock, bootstrapTimeout time.Duration) (*NetTransport, error) {
	buf := make([]byte, state.MaxBootstrapSize)
	// the timeout runs on clk, the socket only sees an already expired deadline
	fired := make(chan struct{})
	expire := clk.AfterFunc(bootstrapTimeout, func() {
		defer close(fired)
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})
	n, err := conn.Read(buf)
	if !expire.Stop() {
		<-fired
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read initial costs: %w", err)
	}
	err = conn.SetReadDeadline(time.Time{})
	if err != nil {
		conn.Close()
		return nil, err
	}

	t := &NetTransport{
		conn:    conn,
		initMsg: string(buf[:n]),
		clock:   clk,
		pending: make(map[state.NodeId][]byte),
		notify:  make(chan struct{}, 1),
	}
	t.wg.Add(1)
	go t.readLoop()
	return t, nil
}

func (t *NetTransport) readLoop() {
	defer t.wg.Done()
	for {
		data, err := protocol.ReadFrame(t.conn)
		if err != nil {
			t.pendingMu.Lock()
			t.readErr = err
			t.pendingMu.Unlock()
			close(t.notify)
			return
		}
		perf.RecvBytesPerSecond.Add(float64(len(data)))
		// malformed messages share the empty sender
		sender, _ := protocol.PeekSender(data)

		t.pendingMu.Lock()
		if _, ok := t.pending[sender]; ok {
			perf.SupersededPerSecond.Add(1)
		} else {
			t.order = append(t.order, sender)
		}
		t.pending[sender] = data
		t.pendingMu.Unlock()

		select {
		case t.notify <- struct{}{}:
		default:
		}
	}
}

func (t *NetTransport) InitialCosts() string {
	return t.initMsg
}

func (t *NetTransport) Send(msg []byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	err := protocol.WriteFrame(t.conn, msg)
	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	if err == nil {
		perf.SentBytesPerSecond.Add(float64(len(msg)))
	}
	return err
}

// next pops the oldest pending message. err is set once the connection is gone and nothing is pending.
func (t *NetTransport) next() ([]byte, bool, error) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if len(t.order) > 0 {
		sender := t.order[0]
		t.order = t.order[1:]
		data := t.pending[sender]
		delete(t.pending, sender)
		return data, true, nil
	}
	if t.readErr != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrTransportClosed, t.readErr)
	}
	return nil, false, nil
}

func (t *NetTransport) Recv(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	timer := t.clock.Timer(timeout)
	defer timer.Stop()
	for {
		data, ok, err := t.next()
		if ok || err != nil {
			return data, ok, err
		}
		select {
		case <-t.notify:
		case <-timer.C:
			return nil, false, nil
		case <-ctx.Done():
			return nil, false, context.Cause(ctx)
		}
	}
}

func (t *NetTransport) Close() error {
	err := net.ErrClosed
	t.once.Do(func() {
		err = t.conn.Close()
		t.wg.Wait()
	})
	return err
}
