// Package version holds build information injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/rowjay/sitebak/internal/version.Version=v1.2.0"
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("sitebak %s (commit %s, built %s)", Version, Commit, Date)
}
