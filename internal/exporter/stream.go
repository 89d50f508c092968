package exporter

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/neox5/statbox/internal/metric"
)

// TextOption configures Stream and Log sinks.
type TextOption func(*textOptions)

type textOptions struct {
	format     string
	lineBuffer bool
	level      slog.Level
}

func newTextOptions(opts []TextOption) textOptions {
	o := textOptions{format: "{name} {value}\n", level: slog.LevelInfo}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Format sets the line template. Placeholders are {name}, {kind},
// {value} and {unit}.
func Format(format string) TextOption {
	return func(o *textOptions) { o.format = format }
}

// LineBuffer holds rendered lines until Flush.
func LineBuffer() TextOption {
	return func(o *textOptions) { o.lineBuffer = true }
}

// Level sets the level of Log records.
func Level(l slog.Level) TextOption {
	return func(o *textOptions) { o.level = l }
}

// Stream writes formatted lines to an io.Writer.
type Stream struct {
	errorCount

	out        io.Writer
	format     *lineFormat
	lineBuffer bool

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewStream returns a Stream writing to w.
func NewStream(w io.Writer, opts ...TextOption) (*Stream, error) {
	o := newTextOptions(opts)
	f, err := newLineFormat(o.format)
	if err != nil {
		return nil, err
	}
	return &Stream{
		errorCount: errorCount{sink: "stream"},
		out:        w,
		format:     f,
		lineBuffer: o.lineBuffer,
	}, nil
}

// ToStdout returns a Stream writing to standard output.
func ToStdout(opts ...TextOption) (*Stream, error) {
	return NewStream(os.Stdout, opts...)
}

// ToStderr returns a Stream writing to standard error.
func ToStderr(opts ...TextOption) (*Stream, error) {
	return NewStream(os.Stderr, opts...)
}

// Write renders batch. Without line buffering it is written immediately.
func (s *Stream) Write(batch []metric.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range batch {
		if err := s.format.render(&s.buf, o); err != nil {
			return s.fail(metric.ErrEncoding, err)
		}
	}
	if s.lineBuffer {
		return nil
	}
	return s.writeOut()
}

// Flush writes buffered lines.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeOut()
}

// writeOut drains buf into out. Callers hold mu.
func (s *Stream) writeOut() error {
	if s.buf.Len() == 0 {
		return nil
	}
	_, err := s.out.Write(s.buf.Bytes())
	s.buf.Reset()
	if err != nil {
		return s.fail(metric.ErrTargetUnavailable, fmt.Errorf("failed to write: %w", err))
	}
	return nil
}
