package exporter

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/neox5/statbox/internal/metric"
)

// GraphiteOption configures a Graphite sink.
type GraphiteOption func(*Graphite)

// GraphitePrefix is prepended with "prefix." to all metric names.
func GraphitePrefix(pfx string) GraphiteOption {
	return func(g *Graphite) {
		if pfx != "" {
			g.prefix = pfx + "."
		}
	}
}

// GraphiteClock replaces time.Now for line timestamps.
func GraphiteClock(now func() time.Time) GraphiteOption {
	return func(g *Graphite) { g.now = now }
}

// Graphite buffers plaintext protocol lines and sends them in one TCP
// write per Flush. A failed write drops the connection; the next Flush
// dials again.
type Graphite struct {
	errorCount

	addr    string
	prefix  string
	now     func() time.Time
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	buf  bytes.Buffer
}

// NewGraphite resolves and dials addr.
func NewGraphite(addr string, opts ...GraphiteOption) (*Graphite, error) {
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return nil, fmt.Errorf("failed to resolve graphite address %s: %w", addr, err)
	}
	g := &Graphite{
		errorCount: errorCount{sink: "graphite"},
		addr:       addr,
		now:        time.Now,
		timeout:    time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.dial(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graphite) dial() error {
	conn, err := net.DialTimeout("tcp", g.addr, g.timeout)
	if err != nil {
		return fmt.Errorf("failed to dial graphite %s: %w", g.addr, err)
	}
	g.conn = conn
	return nil
}

// Write buffers one line per observation. Timers are sent in milliseconds.
func (g *Graphite) Write(batch []metric.Observation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := strconv.FormatInt(g.now().Unix(), 10)
	for _, o := range batch {
		g.buf.WriteString(g.prefix)
		g.buf.WriteString(o.Name.String())
		g.buf.WriteByte(' ')
		if o.Kind == metric.KindTimer {
			g.buf.WriteString(strconv.FormatFloat(float64(o.Value)/1e6, 'f', -1, 64))
		} else {
			g.buf.WriteString(strconv.FormatInt(o.Value, 10))
		}
		g.buf.WriteByte(' ')
		g.buf.WriteString(ts)
		g.buf.WriteByte('\n')
	}
	return nil
}

// Flush sends the buffered lines. On failure they are dropped.
func (g *Graphite) Flush() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.buf.Len() == 0 {
		return nil
	}
	defer g.buf.Reset()

	if g.conn == nil {
		if err := g.dial(); err != nil {
			return g.fail(metric.ErrTargetUnavailable, err)
		}
	}
	_ = g.conn.SetWriteDeadline(time.Now().Add(g.timeout))
	if _, err := g.conn.Write(g.buf.Bytes()); err != nil {
		_ = g.conn.Close()
		g.conn = nil
		return g.fail(metric.ErrTargetUnavailable, err)
	}
	return nil
}

// Close closes the connection.
func (g *Graphite) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}
