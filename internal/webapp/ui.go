package webapp

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFiles embed.FS

const uiPrefix = "/dev-ui/"

// registerUI serves the bundled web UI under /dev-ui/ and sends / there.
func (a *App) registerUI(mux *http.ServeMux) {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The embed directive guarantees the directory.
		panic(err)
	}
	mux.Handle("GET "+uiPrefix, http.StripPrefix(uiPrefix, http.FileServerFS(sub)))
	mux.Handle("GET /{$}", http.RedirectHandler(uiPrefix, http.StatusFound))
	mux.Handle("GET /dev-ui", http.RedirectHandler(uiPrefix, http.StatusMovedPermanently))
}
