// Package version reports build metadata for the t2 binaries
package version

// BuildInfo holds version information about the service build
type BuildInfo struct {
	Service string `json:"service" yaml:"service"`
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

// Service is the default service name reported to logs and backends
const Service = "t2-cluster"

// Info returns the build information
// set via -ldflags "-X 't2/internal/core/version.version=v0.0.1' -X 't2/internal/core/version.commit=abcd'"
func Info() BuildInfo {
	return BuildInfo{
		Service: Service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// String renders a short identifier like "t2-cluster dev (none)"
func (b BuildInfo) String() string {
	return b.Service + " " + b.Version + " (" + b.Commit + ")"
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
