// Package version reports build metadata for tariffsync binaries
package version

// BuildInfo holds version information about the build
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information, the variables below are set with
// -ldflags "-X 'tariffsync/internal/core/version.version=v0.1.0' -X 'tariffsync/internal/core/version.commit=abcd'"
func Info() BuildInfo {
	return BuildInfo{
		Service: "tariffsync",
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// String renders the info for cobra's --version output
func (b BuildInfo) String() string {
	return b.Version + " (" + b.Commit + ", " + b.Date + ")"
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
