package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 320 180"><rect width="320" height="180" fill="#f0f0f0"/><rect x="90" y="50" width="140" height="70" rx="12" fill="#999"/><rect x="102" y="62" width="36" height="26" fill="#f0f0f0"/><rect x="142" y="62" width="36" height="26" fill="#f0f0f0"/><rect x="182" y="62" width="36" height="26" fill="#f0f0f0"/><circle cx="120" cy="124" r="10" fill="#666"/><circle cx="200" cy="124" r="10" fill="#666"/><text x="160" y="165" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">ROUTE</text></svg>`

// StaticFileServer serves route map and thumbnail images from dir, falling
// back to a placeholder for missing files.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Clean("/" + r.URL.Path)
		path := filepath.Join(dir, name)

		if info, err := os.Stat(path); err == nil && !info.IsDir() && strings.HasPrefix(path, filepath.Clean(dir)) {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
