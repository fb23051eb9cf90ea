// Package version exposes the agent's build metadata, reported by the
// version endpoint and the version subcommand.
package version

// Set at build time via -ldflags, e.g.
// -X github.com/widyaops/confdeploy/internal/version.Version=v1.2.0
var (
	// Version is the agent's semantic version.
	Version = "dev"

	// BuildTime is when the binary was built.
	BuildTime = "unknown"

	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"
)

// Info returns the build metadata for API responses.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}
}
