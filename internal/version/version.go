package version

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// Set through -ldflags at build time
var (
	App       = "IdentityGate"
	Version   string
	GitCommit string
	BuildTime string
)

// String returns the version, "dev" for untagged builds.
func String() string {
	if Version != "" {
		return Version
	}
	return "dev"
}

// ShortCommit returns the abbreviated commit hash.
func ShortCommit() string {
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

// PrintVersion prints the build information for the -version flag.
func PrintVersion() {
	fmt.Printf("%s version %s\n", App, String())
	if GitCommit != "" {
		fmt.Printf("Git commit: %s\n", ShortCommit())
	}
	if BuildTime != "" {
		fmt.Printf("Build time: %s\n", BuildTime)
	}
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("Built for: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// Fields returns the build information as log fields.
func Fields() []zap.Field {
	return []zap.Field{
		zap.String("app", App),
		zap.String("version", String()),
		zap.String("commit", ShortCommit()),
		zap.String("go", runtime.Version()),
	}
}
