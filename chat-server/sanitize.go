package main

import (
	"html"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// displayNamePolicy strips every HTML construct from user-supplied display
// strings before they are stored or broadcast.
var displayNamePolicy = bluemonday.StrictPolicy()

const displayNameMax = 128

// sanitizeDisplayName normalizes an uploaded file's display name: HTML
// entities decoded, tags stripped, path components removed, length capped.
// An empty or fully-stripped name falls back to "file".
func sanitizeDisplayName(name string) string {
	decoded := html.UnescapeString(name)
	clean := displayNamePolicy.Sanitize(decoded)
	clean = strings.TrimSpace(clean)
	clean = strings.ReplaceAll(clean, "\\", "/")
	clean = filepath.Base(clean)
	clean = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, clean)
	if clean == "" || clean == "." || clean == ".." || clean == "/" {
		return "file"
	}
	if len(clean) > displayNameMax {
		clean = clean[:displayNameMax]
	}
	return clean
}
