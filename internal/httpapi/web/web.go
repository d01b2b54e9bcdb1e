// Package web embeds the voicemail browsing surface's static assets
// (SPEC_FULL.md §4.8's index.html/css/js), served by httpapi.NewServer.
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html css js
var files embed.FS

// FS returns the embedded static asset tree rooted at its own
// directory, ready to hand to http.FileServer.
func FS() fs.FS {
	return files
}
