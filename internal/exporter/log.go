package exporter

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/neox5/statbox/internal/metric"
)

// Log emits observations as slog records.
type Log struct {
	errorCount

	logger     *slog.Logger
	level      slog.Level
	format     *lineFormat
	lineBuffer bool

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLog returns a Log sink. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger, opts ...TextOption) (*Log, error) {
	o := newTextOptions(opts)
	f, err := newLineFormat(o.format)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		errorCount: errorCount{sink: "log"},
		logger:     logger,
		level:      o.level,
		format:     f,
		lineBuffer: o.lineBuffer,
	}, nil
}

// Write logs one record per observation, or buffers the rendered lines.
func (l *Log) Write(batch []metric.Observation) error {
	if !l.logger.Enabled(context.Background(), l.level) {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range batch {
		if l.lineBuffer {
			if err := l.format.render(&l.buf, o); err != nil {
				return l.fail(metric.ErrEncoding, err)
			}
			continue
		}

		var line strings.Builder
		if err := l.format.render(&line, o); err != nil {
			return l.fail(metric.ErrEncoding, err)
		}
		l.logger.Log(context.Background(), l.level, strings.TrimSpace(line.String()),
			"name", o.Name.String(),
			"kind", o.Kind.String(),
			"value", o.Value)
	}
	return nil
}

// Flush emits buffered lines as one record.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buf.Len() == 0 {
		return nil
	}
	l.logger.Log(context.Background(), l.level, "metrics",
		"lines", strings.TrimRight(l.buf.String(), "\n"))
	l.buf.Reset()
	return nil
}
