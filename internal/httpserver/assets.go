package httpserver

import (
	"embed"
	"io/fs"
	"net/http"
)

// distFS embeds the built frontend (index.html, global.css, manifest.json,
// bundle.js). net/http's FileServer/ServeContent already provides Range
// and If-Modified-Since/ETag handling for an fs.FS-backed file, so no
// additional library is needed here (see DESIGN.md).
//
//go:embed web/dist/*
var distFS embed.FS

func staticHandler() http.Handler {
	sub, err := fs.Sub(distFS, "web/dist")
	if err != nil {
		panic("httpserver: embedded asset tree missing: " + err.Error())
	}
	// FileServer serves index.html for "/" itself and redirects any
	// request for "/index.html" back to "/", so the root is passed through
	// unchanged.
	return http.FileServer(http.FS(sub))
}
