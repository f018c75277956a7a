package version

// Version information for the Live Workspace Index
const (
	// Version is the current semantic version of LWI
	Version = "0.1.0"

	// BuildDate is set during build time (use -ldflags)
	BuildDate = "development"

	// GitCommit is set during build time (use -ldflags)
	GitCommit = "unknown"
)

// Info returns version information as a string
func Info() string {
	return Version
}

// FullInfo returns detailed version information
func FullInfo() string {
	return "Live Workspace Index " + Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")"
}
