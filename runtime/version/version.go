// Package version reports the botservice build.
// Build values can be set with ldflags:
//
//	go build -ldflags "-X github.com/jagmitg/botservice/runtime/version.version=1.0.0"
package version

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
	vcsRevisionKey = "vcs.revision"
	vcsModifiedKey = "vcs.modified"
)

var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// Info describes the running build.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Dirty   bool   `json:"dirty,omitempty"`
	Built   string `json:"built,omitempty"`
}

// Get returns the build info. ldflags values win over module build info.
func Get() Info {
	info := Info{Version: version, Commit: gitCommit, Built: buildDate}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == devVersion && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	if gitCommit != "" {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case vcsRevisionKey:
			info.Commit = s.Value[:min(shortCommitLen, len(s.Value))]
		case vcsModifiedKey:
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// String formats the info for `botservice version`.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "botservice version %s", i.Version)
	if i.Commit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", i.Commit)
		if i.Dirty {
			b.WriteString(" (dirty)")
		}
	}
	if i.Built != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", i.Built)
	}
	return b.String()
}

// IsRelease reports whether the version is a semantic version without a
// prerelease suffix. "v1.2.3" counts; "dev" and "1.2.3-rc.1" do not.
func (i Info) IsRelease() bool {
	v, err := semver.NewVersion(i.Version)
	return err == nil && v.Prerelease() == "" && !i.Dirty
}

// LogAttrs returns the info as slog key/value pairs.
func (i Info) LogAttrs() []any {
	attrs := []any{"version", i.Version, "release", i.IsRelease()}
	if i.Commit != "" {
		attrs = append(attrs, "commit", i.Commit)
	}
	if i.Dirty {
		attrs = append(attrs, "dirty", true)
	}
	if i.Built != "" {
		attrs = append(attrs, "built", i.Built)
	}
	return attrs
}
