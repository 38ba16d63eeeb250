package devserver

import (
	"bytes"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// serveStatic serves files below the public path from the content base,
// falling back to the history index for HTML navigations.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if strings.HasPrefix(r.URL.Path, s.opts.PublicPath) {
		name := path.Clean("/" + strings.TrimPrefix(r.URL.Path, s.opts.PublicPath))
		if s.serveFile(w, r, name) {
			return
		}
	}
	if index, ok := s.fallback(r); ok && s.serveFile(w, r, index) {
		return
	}
	http.NotFound(w, r)
}

// fallback returns the file to serve for an unknown path, if the history
// fallback applies to r.
func (s *Server) fallback(r *http.Request) (string, bool) {
	h := s.opts.HistoryAPIFallback
	if h == nil {
		return "", false
	}
	if !acceptsHTML(r) {
		return "", false
	}
	if !h.DisableDotRule && strings.Contains(path.Base(r.URL.Path), ".") {
		return "", false
	}

	index := h.Index
	if strings.HasSuffix(index, "/") {
		index += "index.html"
	}
	index = "/" + strings.TrimPrefix(index, s.opts.PublicPath)
	return path.Clean(index), true
}

func acceptsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

// serveFile writes the named file, or the index.html of the named directory.
// It reports false when nothing was found.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	f, info, err := s.open(name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		f.Close()
		name = path.Join(name, "index.html")
		if f, info, err = s.open(name); err != nil {
			return false
		}
		if info.IsDir() {
			f.Close()
			return false
		}
	}
	defer f.Close()

	if s.opts.Hot && isHTML(name) {
		if err := s.serveHTML(w, r, f, info.ModTime()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return true
	}

	http.ServeContent(w, r, name, info.ModTime(), f)
	return true
}

func (s *Server) open(name string) (http.File, fs.FileInfo, error) {
	f, err := s.files.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

func (s *Server) serveHTML(w http.ResponseWriter, r *http.Request, f io.Reader, modTime time.Time) error {
	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	page, err := injectClient(raw)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", modTime, bytes.NewReader(page))
	return nil
}

func isHTML(name string) bool {
	ext := filepath.Ext(name)
	if ext == ".html" || ext == ".htm" {
		return true
	}
	return strings.HasPrefix(mime.TypeByExtension(ext), "text/html")
}
