// Package exporter implements the concrete sinks metrics end up in.
package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/valyala/fasttemplate"

	"github.com/neox5/statbox/internal/metric"
)

// errorCount counts and logs runtime failures of a sink.
type errorCount struct {
	sink string
	n    atomic.Int64
}

// fail wraps err in kind, counts it and logs it.
func (e *errorCount) fail(kind error, err error) error {
	e.n.Add(1)
	err = fmt.Errorf("%s: %w: %w", e.sink, kind, err)
	slog.Debug("sink write failed", "sink", e.sink, "error", err)
	return err
}

// Errors returns the number of failed writes so far.
func (e *errorCount) Errors() int64 {
	return e.n.Load()
}

// lineFormat renders observations through a {placeholder} template.
type lineFormat struct {
	tpl *fasttemplate.Template
}

func newLineFormat(format string) (*lineFormat, error) {
	tpl, err := fasttemplate.NewTemplate(format, "{", "}")
	if err != nil {
		return nil, fmt.Errorf("failed to parse format %q: %w", format, err)
	}

	// reject unknown placeholders up front
	_, err = tpl.ExecuteFunc(io.Discard, func(w io.Writer, tag string) (int, error) {
		switch tag {
		case "name", "kind", "value", "unit":
			return 0, nil
		default:
			return 0, fmt.Errorf("unknown placeholder {%s}", tag)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid format %q: %w", format, err)
	}
	return &lineFormat{tpl: tpl}, nil
}

func (f *lineFormat) render(w io.Writer, o metric.Observation) error {
	_, err := f.tpl.ExecuteFunc(w, func(w io.Writer, tag string) (int, error) {
		switch tag {
		case "name":
			return io.WriteString(w, o.Name.String())
		case "kind":
			return io.WriteString(w, o.Kind.String())
		case "value":
			return io.WriteString(w, strconv.FormatInt(o.Value, 10))
		case "unit":
			return io.WriteString(w, o.Kind.Unit())
		}
		return 0, nil
	})
	return err
}
