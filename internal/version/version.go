// Package version reports the tierup build version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit is the source revision, set at build time with
// -ldflags "-X github.com/ShayCichocki/tierup/internal/version.Commit=<sha>".
var Commit = ""

// Get returns the current version, with whitespace trimmed.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the version followed by the short commit when known.
func String() string {
	v := Get()
	if c := Commit; c != "" {
		if len(c) > 7 {
			c = c[:7]
		}
		return v + " (" + c + ")"
	}
	return v
}
