// Package buildinfo holds version metadata stamped in at link time.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version will be set via ldflags during build.
	Version = "dev"
	// Commit will be set via ldflags during build.
	Commit = "none"
	// Date will be set via ldflags during build.
	Date = "unknown"
)

// String formats the version line shown by `recon --version`. Unstamped
// builds fall back to the VCS revision recorded by the Go toolchain.
func String() string {
	commit := Commit
	if commit == "none" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					commit = s.Value[:7]
				}
			}
		}
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, commit, Date)
}
