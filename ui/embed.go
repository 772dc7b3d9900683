// Package ui embeds the browser viewer served under /viewer/.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// Prefix is the path the viewer is mounted on.
const Prefix = "/viewer/"

// Handler serves the embedded viewer with Prefix stripped.
func Handler() (http.Handler, error) {
	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}
	return http.StripPrefix(Prefix, http.FileServerFS(fsys)), nil
}

// Mount registers the viewer on mux.
func Mount(mux *http.ServeMux) error {
	h, err := Handler()
	if err != nil {
		return err
	}
	mux.Handle("GET "+Prefix, h)
	return nil
}
