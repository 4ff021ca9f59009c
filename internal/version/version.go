// Package version provides application version information.
// The values can be set at build time using ldflags:
//
//	go build -ldflags "-X github.com/statvalue/statvalue-companion/internal/version.Version=v1.2.3 \
//	  -X github.com/statvalue/statvalue-companion/internal/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import "fmt"

var (
	// Version is the application version. It defaults to "dev".
	Version = "dev"
	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"
)

// GetVersion returns the current application version.
func GetVersion() string {
	return Version
}

// String returns the version with its commit, e.g. "v1.2.3 (commit: abc123)".
func String() string {
	return fmt.Sprintf("%s (commit: %s)", Version, GitCommit)
}

// UserAgent returns the User-Agent sent to the prediction backend.
func UserAgent() string {
	return "statvalue/" + Version
}
