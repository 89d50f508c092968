// Package version exposes build information. Values are injected with
// -ldflags into github.com/prometheus/common/version, e.g.
//
//	-X github.com/prometheus/common/version.Version=1.2.0
package version

import (
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"
)

// Program is the name reported in build info.
const Program = "statbox"

// String returns the version, or "dev" for untagged builds.
func String() string {
	if version.Version == "" {
		return "dev"
	}
	return version.Version
}

// Info returns version, branch and revision in one line.
func Info() string {
	return version.Info()
}

// Collector returns a collector exporting statbox_build_info.
func Collector() prometheus.Collector {
	return versioncollector.NewCollector(Program)
}
