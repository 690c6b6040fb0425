package app

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// Version is filled by ldflags in release builds.
	Version = "dev"
	// BuildDate is filled by ldflags in release builds.
	BuildDate = ""

	readBuildInfo = debug.ReadBuildInfo
)

const dateLayout = "2006-01-02"

// BuildVersion prefers the ldflags version and falls back to the module
// version stamped by `go install`.
func BuildVersion() string {
	version := strings.TrimSpace(Version)
	if version != "" && version != "dev" {
		return version
	}
	if info, ok := readBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}

	return "dev"
}

// BuildDateYMD returns the build date as YYYY-MM-DD. Without ldflags the VCS
// commit time is used when the toolchain recorded one.
func BuildDateYMD() string {
	raw := strings.TrimSpace(BuildDate)
	if raw == "" {
		raw = vcsTime()
	}
	if raw == "" {
		return ""
	}

	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.Format(dateLayout)
	}
	if len(raw) >= len(dateLayout) {
		if _, err := time.Parse(dateLayout, raw[:len(dateLayout)]); err == nil {
			return raw[:len(dateLayout)]
		}
	}

	return raw
}

func vcsTime() string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.time" {
			return setting.Value
		}
	}

	return ""
}

func BuildVersionWithDate() string {
	version := BuildVersion()
	if buildDate := BuildDateYMD(); buildDate != "" {
		return fmt.Sprintf("%s (%s)", version, buildDate)
	}

	return version
}
