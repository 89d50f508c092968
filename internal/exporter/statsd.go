package exporter

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/neox5/statbox/internal/metric"
)

// StatsdOption configures a Statsd sink.
type StatsdOption func(*Statsd) error

// Statsd writes statsd lines, packed into datagrams of at most MaxPacket
// bytes. Each Flush sends whatever is left.
type Statsd struct {
	errorCount

	out    io.Writer
	closer io.Closer
	max    int
	prefix string
	rate   float64

	mu  sync.Mutex
	buf []byte
}

// Peer sends datagrams to the statsd server at addr.
func Peer(addr string) StatsdOption {
	return func(s *Statsd) error {
		conn, err := net.DialTimeout("udp", addr, time.Second)
		if err != nil {
			return fmt.Errorf("failed to dial statsd %s: %w", addr, err)
		}
		s.out = conn
		s.closer = conn
		return nil
	}
}

// Output sets a general io.Writer as output instead of a UDP connection.
// Every packet is one Write call.
func Output(w io.Writer) StatsdOption {
	return func(s *Statsd) error {
		s.out = w
		return nil
	}
}

// Prefix is prepended with "prefix." to all metric names.
func Prefix(pfx string) StatsdOption {
	return func(s *Statsd) error {
		if pfx != "" {
			s.prefix = pfx + "."
		}
		return nil
	}
}

// MaxPacket sets the datagram size limit. 1432 is safe for most nets.
func MaxPacket(size int) StatsdOption {
	return func(s *Statsd) error {
		if size <= 0 {
			return fmt.Errorf("invalid packet size: %d", size)
		}
		s.max = size
		return nil
	}
}

// SampleRate annotates every line with |@rate when below 1.
func SampleRate(rate float64) StatsdOption {
	return func(s *Statsd) error {
		if !(rate > 0 && rate <= 1) {
			return fmt.Errorf("invalid sample rate: %v", rate)
		}
		s.rate = rate
		return nil
	}
}

// NewStatsd returns a Statsd sink. Without Peer or Output it writes to
// standard output.
func NewStatsd(opts ...StatsdOption) (*Statsd, error) {
	s := &Statsd{
		errorCount: errorCount{sink: "statsd"},
		out:        os.Stdout,
		max:        1432,
		rate:       1,
	}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.buf = make([]byte, 0, s.max)
	return s, nil
}

// Write appends one line per observation, sending full packets as they
// fill up. Observations that cannot be encoded are skipped and reported.
func (s *Statsd) Write(batch []metric.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var encErr, sendErr error
	for _, o := range batch {
		if o.Kind == metric.KindGauge && o.Value < 0 {
			// a leading sign means a relative change to statsd
			if encErr == nil {
				encErr = s.fail(metric.ErrEncoding, fmt.Errorf("negative gauge %s=%d", o.Name, o.Value))
			}
			continue
		}
		curbuflen := len(s.buf)
		s.appendLine(o)
		if err := s.flushIfBufferFull(curbuflen); err != nil && sendErr == nil {
			sendErr = err
		}
	}
	if sendErr != nil {
		return sendErr
	}
	return encErr
}

// Flush sends the remaining lines.
func (s *Statsd) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush(0)
}

// Close closes the connection opened by Peer.
func (s *Statsd) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *Statsd) appendLine(o metric.Observation) {
	s.buf = append(s.buf, s.prefix...)
	s.buf = append(s.buf, o.Name.String()...)
	s.buf = append(s.buf, ':')
	switch o.Kind {
	case metric.KindTimer:
		s.buf = strconv.AppendFloat(s.buf, float64(o.Value)/1e6, 'f', -1, 64)
		s.buf = append(s.buf, "|ms"...)
	case metric.KindGauge:
		s.buf = strconv.AppendInt(s.buf, o.Value, 10)
		s.buf = append(s.buf, "|g"...)
	default:
		s.buf = strconv.AppendInt(s.buf, o.Value, 10)
		s.buf = append(s.buf, "|c"...)
	}
	if s.rate < 1 {
		s.buf = append(s.buf, "|@"...)
		s.buf = strconv.AppendFloat(s.buf, s.rate, 'f', -1, 64)
	}
	s.buf = append(s.buf, '\n')
}

func (s *Statsd) flushIfBufferFull(lastSafeLen int) error {
	if len(s.buf) > s.max {
		return s.flush(lastSafeLen)
	}
	return nil
}

// flush sends the first n bytes of buf, or all of it when n is zero, and
// keeps the rest.
func (s *Statsd) flush(n int) error {
	if len(s.buf) == 0 {
		return nil
	}
	if n == 0 {
		n = len(s.buf)
	}

	// Trim the last \n, StatsD does not like it.
	_, err := s.out.Write(s.buf[:n-1])

	if n < len(s.buf) {
		copy(s.buf, s.buf[n:])
	}
	s.buf = s.buf[:len(s.buf)-n]

	if err != nil {
		return s.fail(metric.ErrTargetUnavailable, err)
	}
	return nil
}
