package site

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFS embed.FS

// FS returns an http.FileSystem for the embedded landing site.
func FS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// Embedded assets are fixed at build time; expose the raw FS
		// rather than failing the handler.
		return http.FS(staticFS)
	}
	return http.FS(sub)
}
