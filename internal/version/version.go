// Package version provides build-time version information for wsclient.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/resilient-ws/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/resilient-ws/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/resilient-ws/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/wsclient
package version

import "runtime"

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
	Platform  string // GOOS/GOARCH
}

// Get returns build and runtime information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a one-line version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
