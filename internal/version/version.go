// Package version exposes build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X couchtransfer/internal/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	// These variables are set during build time using ldflags.
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Platform  string
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetVersionInfo returns the build information formatted for the version command.
func GetVersionInfo() string {
	info := Get()
	return fmt.Sprintf("Version: %s\nGit Commit: %s\nBuild Date: %s\nGo Version: %s\nPlatform: %s\n",
		info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
}
