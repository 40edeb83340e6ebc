package router

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/utilities"
)

// spaHandler serves the built frontend from root. Unknown paths fall back
// to index.html so client-side routing works; paths under the API prefix
// or static/ never do.
func spaHandler(root, apiPrefix string) http.Handler {
	fsys := os.DirFS(root)
	apiDir := strings.TrimPrefix(apiPrefix, "/")
	if apiDir != "" {
		apiDir += "/"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			utilities.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")

		if _, err := fs.Stat(fsys, "index.html"); err != nil {
			if name == "" {
				utilities.WriteError(w, http.StatusServiceUnavailable, "Frontend not built")
				return
			}
			utilities.WriteError(w, http.StatusNotFound, "Not found")
			return
		}

		if name != "" && fs.ValidPath(name) {
			if fi, err := fs.Stat(fsys, name); err == nil && !fi.IsDir() {
				http.ServeFileFS(w, r, fsys, name)
				return
			}
		}
		if name+"/" == apiDir || (apiDir != "" && strings.HasPrefix(name, apiDir)) || strings.HasPrefix(name, "static/") {
			utilities.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		http.ServeFileFS(w, r, fsys, "index.html")
	})
}
