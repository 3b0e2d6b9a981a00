package version

import "fmt"

var (
	// Version is the semantic version of the binary. Set with -ldflags at build time.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)

// String renders the build information on three lines.
func String() string {
	return fmt.Sprintf("txfeatures %s\ncommit: %s\nbuilt: %s", Version, Commit, BuildDate)
}
