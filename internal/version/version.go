// Package version отдаёт сведения о сборке. Значения задаются через
// -ldflags "-X github.com/vladislavdragonenkov/storefront/internal/version.version=..."
// либо берутся из метаданных VCS, которые go build вшивает в бинарник.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

const unknown = "unknown"

var (
	version = "dev"
	commit  = unknown
	date    = unknown
)

// Build описывает текущую сборку.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

var (
	currentOnce sync.Once
	current     Build
)

// Current возвращает сведения о сборке; ldflags приоритетнее метаданных VCS.
func Current() Build {
	currentOnce.Do(func() {
		info, _ := debug.ReadBuildInfo()
		current = resolve(info)
	})
	return current
}

func resolve(info *debug.BuildInfo) Build {
	b := Build{Version: version, Commit: commit, Date: date, GoVersion: runtime.Version()}
	if info == nil {
		return b
	}
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == unknown {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == unknown {
				b.Date = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// GetVersion возвращает версию сборки.
func GetVersion() string { return Current().Version }

// ShortCommit — первые 12 символов коммита.
func (b Build) ShortCommit() string {
	if len(b.Commit) > 12 {
		return b.Commit[:12]
	}
	return b.Commit
}

func (b Build) String() string {
	s := fmt.Sprintf("storefront %s (commit %s, built %s, %s)", b.Version, b.ShortCommit(), b.Date, b.GoVersion)
	if b.Modified {
		s += " dirty"
	}
	return s
}
