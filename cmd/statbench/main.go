package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neox5/statbox/internal/bucket"
	"github.com/neox5/statbox/internal/exporter"
	"github.com/neox5/statbox/internal/metric"
)

func main() {
	threads := flag.Int("threads", 4, "number of writing goroutines")
	duration := flag.Duration("duration", 5*time.Second, "how long to write")
	flag.Parse()

	out, err := exporter.ToStdout()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output: %v\n", err)
		os.Exit(1)
	}

	b := bucket.New(
		bucket.WithTarget(out),
		bucket.WithStrategy(bucket.AllStats),
		bucket.WithPeriodLength(),
		bucket.WithErrorHandler(metric.IgnoreErrors),
	)
	b.FlushEvery(time.Second)
	defer b.Stop()

	marker := b.Scope().Named("bench").Marker("marker")

	slog.Info("starting bucket benchmark", "threads", *threads, "duration", *duration)

	var (
		running atomic.Bool
		total   atomic.Int64
		wg      sync.WaitGroup
	)
	running.Store(true)
	for range *threads {
		wg.Go(func() {
			var n int64
			for running.Load() {
				marker.Mark()
				n++
			}
			total.Add(n)
		})
	}

	time.Sleep(*duration)
	running.Store(false)
	wg.Wait()

	b.Stop()
	if err := b.Flush(); err != nil {
		slog.Error("final flush failed", "error", err)
	}

	n := total.Load()
	slog.Info("benchmark complete",
		"marks", n,
		"marks_per_sec", float64(n)/duration.Seconds(),
	)
}
