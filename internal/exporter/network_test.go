package exporter

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neox5/statbox/internal/metric"
)

func TestStatsdPeer(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	s, err := NewStatsd(Peer(pc.LocalAddr().String()))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write([]metric.Observation{obs("hits", metric.KindCounter, 2)}))
	require.NoError(t, s.Flush())

	buf := make([]byte, 1500)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "hits:2|c", string(buf[:n]))
}

// lineServer accepts connections and forwards every received line.
func lineServer(t *testing.T) (net.Listener, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	lines := make(chan string, 64)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				sc := bufio.NewScanner(conn)
				for sc.Scan() {
					lines <- sc.Text()
				}
			}()
		}
	}()
	return ln, lines
}

func nextLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case l := <-lines:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("no line received")
		return ""
	}
}

func TestGraphite(t *testing.T) {
	ln, lines := lineServer(t)
	defer ln.Close()

	g, err := NewGraphite(ln.Addr().String(),
		GraphitePrefix("app"),
		GraphiteClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
	)
	require.NoError(t, err)
	defer g.Close()

	require.NoError(t, g.Write([]metric.Observation{
		obs("requests", metric.KindCounter, 5),
		obs("latency", metric.KindTimer, 2_000_000),
	}))
	require.NoError(t, g.Flush())

	assert.Equal(t, "app.requests 5 1700000000", nextLine(t, lines))
	assert.Equal(t, "app.latency 2 1700000000", nextLine(t, lines))

	// a dropped connection is dialed again on the next flush
	require.NoError(t, g.Close())
	require.NoError(t, g.Write([]metric.Observation{obs("requests", metric.KindCounter, 1)}))
	require.NoError(t, g.Flush())
	assert.Equal(t, "app.requests 1 1700000000", nextLine(t, lines))
}

func TestGraphiteUnavailable(t *testing.T) {
	ln, _ := lineServer(t)
	addr := ln.Addr().String()

	g, err := NewGraphite(addr)
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, ln.Close())

	require.NoError(t, g.Write([]metric.Observation{obs("a", metric.KindGauge, 1)}))
	assert.ErrorIs(t, g.Flush(), metric.ErrTargetUnavailable)
	assert.EqualValues(t, 1, g.Errors())

	_, err = NewGraphite(addr)
	assert.Error(t, err, "construction dials")
	_, err = NewGraphite("no port")
	assert.Error(t, err)
}
