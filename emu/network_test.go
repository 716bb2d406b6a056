package emu

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/core"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/protocol"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func startNetwork(t *testing.T, doc string) (*Network, string) {
	t.Helper()
	topo, err := ParseTopology([]byte(doc))
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	n := NewNetwork(topo, discard)
	errs := make(chan error, 1)
	go func() {
		errs <- n.Serve(context.Background(), ln)
	}()
	t.Cleanup(func() {
		assert.NoError(t, n.Close())
		assert.NoError(t, <-errs)
	})
	return n, ln.Addr().String()
}

// attachRaw connects a bare client and returns its bootstrap message.
func attachRaw(t *testing.T, addr string) (net.Conn, string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
	})
	buf := make([]byte, state.MaxBootstrapSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	nr, err := conn.Read(buf)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Time{}))
	return conn, string(buf[:nr])
}

func isReady(n *Network, id state.NodeId) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.clients[id]
	return ok && c.ready.Load()
}

func readFrameWithin(conn net.Conn, d time.Duration) (string, error) {
	err := conn.SetReadDeadline(time.Now().Add(d))
	if err != nil {
		return "", err
	}
	data, err := protocol.ReadFrame(conn)
	return string(data), err
}

func TestNetworkBootstrap(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	n, addr := startNetwork(t, squareTopology)

	expected := []string{"A. B:1,C:4", "B. A:1,D:2", "C. A:4,D:1", "D. B:2,C:1"}
	for _, msg := range expected {
		_, init := attachRaw(t, addr)
		assert.Equal(t, msg, init)
	}
	require.Eventually(t, func() bool {
		return n.Attached() == 4
	}, time.Second, 5*time.Millisecond)

	// every node is taken
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 16))
	assert.Error(t, err)
}

func TestNetworkRelay(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	n, addr := startNetwork(t, `
nodes: [A, B, C]
links:
  - {a: A, b: B, cost: 1}
  - {a: B, b: C, cost: 2}
`)
	a, _ := attachRaw(t, addr)
	b, _ := attachRaw(t, addr)
	c, _ := attachRaw(t, addr)

	// B has not sent anything yet, so it receives nothing
	require.NoError(t, protocol.WriteFrame(a, []byte("A|A:0")))
	require.Eventually(t, func() bool {
		return isReady(n, "A")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, protocol.WriteFrame(b, []byte("B|B:0")))
	msg, err := readFrameWithin(a, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "B|B:0", msg)
	_, err = readFrameWithin(b, 50*time.Millisecond)
	assert.Error(t, err, "B joined after A sent")

	require.NoError(t, protocol.WriteFrame(c, []byte("C|C:0")))
	msg, err = readFrameWithin(b, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "C|C:0", msg)
	_, err = readFrameWithin(a, 50*time.Millisecond)
	assert.Error(t, err, "A is not a neighbour of C")
}

func TestNetworkRelayKeepsSendOrder(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	n, addr := startNetwork(t, `
nodes: [A, B, C]
links:
  - {a: A, b: B, cost: 1}
  - {a: B, b: C, cost: 2}
`)
	a, _ := attachRaw(t, addr)
	b, _ := attachRaw(t, addr)
	c, _ := attachRaw(t, addr)
	require.NoError(t, protocol.WriteFrame(b, []byte("B|B:0")))
	require.Eventually(t, func() bool {
		return isReady(n, "B")
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, protocol.WriteFrame(a, []byte("A|A:0")))
	require.NoError(t, protocol.WriteFrame(c, []byte("C|C:0")))
	// B receives both, which also means A and C are ready
	for range 2 {
		_, err := readFrameWithin(b, time.Second)
		require.NoError(t, err)
	}

	// one vector per neighbour, each poisoned for its target; the frame carries no recipient so
	// both neighbours get both, in the order B sent them
	toA := "B|A:999,B:0,C:2"
	toC := "B|A:1,B:0,C:999"
	require.NoError(t, protocol.WriteFrame(b, []byte(toA)))
	require.NoError(t, protocol.WriteFrame(b, []byte(toC)))
	for _, conn := range []net.Conn{a, c} {
		for _, want := range []string{toA, toC} {
			msg, err := readFrameWithin(conn, time.Second)
			require.NoError(t, err)
			assert.Equal(t, want, msg)
		}
	}
}

func TestNetworkLossAndLatency(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	n, addr := startNetwork(t, `
nodes: [A, B, C]
links:
  - {a: A, b: B, cost: 1, loss: 1}
  - {a: A, b: C, cost: 1, latency: 100ms}
`)
	a, _ := attachRaw(t, addr)
	b, _ := attachRaw(t, addr)
	c, _ := attachRaw(t, addr)
	require.NoError(t, protocol.WriteFrame(b, []byte("B|B:0")))
	require.NoError(t, protocol.WriteFrame(c, []byte("C|C:0")))
	require.Eventually(t, func() bool {
		return isReady(n, "B") && isReady(n, "C")
	}, time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, protocol.WriteFrame(a, []byte("A|A:0")))
	msg, err := readFrameWithin(c, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "A|A:0", msg)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	_, err = readFrameWithin(b, 50*time.Millisecond)
	assert.Error(t, err, "link A-B drops everything")
}

func TestNetworkCloseWithPendingDelivery(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	n, addr := startNetwork(t, `
nodes: [A, B]
links:
  - {a: A, b: B, cost: 1, latency: 1h}
`)
	a, _ := attachRaw(t, addr)
	b, _ := attachRaw(t, addr)
	require.NoError(t, protocol.WriteFrame(b, []byte("B|B:0")))
	require.Eventually(t, func() bool {
		return isReady(n, "B")
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, protocol.WriteFrame(a, []byte("A|A:0")))
	require.Eventually(t, func() bool {
		return isReady(n, "A")
	}, time.Second, 5*time.Millisecond)
}

// TestConvergence runs one routing node per topology node against the emulator.
func TestConvergence(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	_, addr := startNetwork(t, squareTopology)
	dir := t.TempDir()

	sessions := make([]*core.Session, 0)
	errs := make(chan error, 4)
	for range 4 {
		cfg := state.DefaultLocalCfg()
		cfg.LogDir = dir
		cfg.UpdateInterval = state.Duration(20 * time.Millisecond)
		cfg.RecvTimeout = state.Duration(10 * time.Millisecond)
		e := state.NewEnv(context.Background(), cfg, discard)

		tr, err := core.DialNetwork(e, addr)
		require.NoError(t, err)
		s := core.NewSession(e, tr)
		require.NoError(t, s.Start())
		sessions = append(sessions, s)
		go func() {
			errs <- s.Run()
		}()
	}
	defer func() {
		for _, s := range sessions {
			assert.NoError(t, s.Stop())
		}
		for range sessions {
			assert.NoError(t, <-errs)
		}
	}()

	expected := map[state.NodeId]string{
		"A": "A:0:A B:1:B C:4:C D:3:B",
		"B": "A:1:A B:0:B C:3:D D:2:D",
		"C": "A:4:A B:3:D C:0:C D:1:D",
		"D": "A:3:B B:2:B C:1:C D:0:D",
	}
	for id, table := range expected {
		path := filepath.Join(dir, "log_"+string(id)+".txt")
		require.Eventually(t, func() bool {
			return lastLine(path) == table
		}, 15*time.Second, 20*time.Millisecond, "node %s did not converge, last table %q", id, lastLine(path))
	}
}

func lastLine(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	return lines[len(lines)-1]
}
