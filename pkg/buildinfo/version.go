// Package buildinfo reports which rootline build is running.
//
// Release builds stamp the values with ldflags:
//
//	-X github.com/rootline/rootline/pkg/buildinfo.Version=v0.3.0
//	-X github.com/rootline/rootline/pkg/buildinfo.Commit=abc1234
//	-X github.com/rootline/rootline/pkg/buildinfo.Date=2026-10-01
//
// Binaries from `go install` carry no ldflags; for those the module version
// and VCS stamp embedded by the toolchain are used instead.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var fillOnce sync.Once

// fill copies toolchain build info into fields still at their defaults.
func fill() {
	fillOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		fromModule(info)
	})
}

func fromModule(info *debug.BuildInfo) {
	if v := info.Main.Version; Version == "dev" && v != "" && v != "(devel)" {
		Version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "none" && s.Value != "" {
				Commit = s.Value
				if len(Commit) > 7 {
					Commit = Commit[:7]
				}
			}
		case "vcs.time":
			if Date == "unknown" && s.Value != "" {
				Date = s.Value
			}
		}
	}
}

// String is the multi-line form printed by `rootline version`.
func String() string {
	fill()
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template is cobra's --version template.
func Template() string {
	fill()
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}

// UserAgent is sent with every backend request.
func UserAgent() string {
	fill()
	return "rootline/" + Version
}
