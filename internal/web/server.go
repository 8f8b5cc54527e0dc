package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed static
var embedded embed.FS

// Server serves the control panel dashboard. Dir overrides the embedded
// assets when it names an existing directory.
type Server struct {
	Dir string
}

func (s *Server) Handler() http.Handler {
	root := s.root()
	files := http.FileServerFS(root)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		// Client side routes such as /runs/web-123 fall back to index.html.
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name != "" && path.Ext(name) == "" {
			if _, err := fs.Stat(root, name); err != nil {
				http.ServeFileFS(w, r, root, "index.html")
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}

func (s *Server) root() fs.FS {
	if s.Dir != "" {
		if st, err := os.Stat(s.Dir); err == nil && st.IsDir() {
			return os.DirFS(s.Dir)
		}
	}
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
