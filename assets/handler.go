// Package assets serves the static files of installed modules.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/goccy/go-json"

	"github.com/priyxstudio/sgo/modules"
)

const indexFile = "index.html"

// AssetPathError is returned when a request names an invalid slug or a path
// that leaves the module's directory.
type AssetPathError struct {
	Slug   string
	Path   string
	Reason string
}

func (e *AssetPathError) Error() string {
	return fmt.Sprintf("assets: %s (slug=%q path=%q)", e.Reason, e.Slug, e.Path)
}

// IsAssetPathError checks if err is an *AssetPathError.
func IsAssetPathError(err error) bool {
	var ape *AssetPathError
	return errors.As(err, &ape)
}

// Handler serves GET and HEAD requests of the form /{slug}/{path...} from
// the module storage root. Mount it behind http.StripPrefix.
type Handler struct {
	root string
}

// NewHandler returns a handler serving modules installed below root.
func NewHandler(root string) *Handler {
	return &Handler{root: root}
}

// ServeHTTP handles incoming HTTP requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	slug, rest := parts[0], ""
	if len(parts) > 1 {
		rest = parts[1]
	}

	p, err := h.Resolve(slug, rest)
	if err != nil {
		switch {
		case IsAssetPathError(err):
			log.WithFields(log.Fields{
				"slug":  slug,
				"path":  rest,
				"ip":    r.RemoteAddr,
				"error": err,
			}).Warn("assets: rejected module asset request")
			writeError(w, http.StatusBadRequest, "invalid module asset path")
		case errors.Is(err, fs.ErrNotExist):
			writeError(w, http.StatusNotFound, "asset not found")
		default:
			log.WithFields(log.Fields{"slug": slug, "path": rest, "error": err}).Error("assets: failed to resolve asset")
			writeError(w, http.StatusInternalServerError, "failed to read asset")
		}
		return
	}
	h.serveFile(w, r, p)
}

// Resolve maps a slug and a slash separated path to a regular file below the
// module's base directory. The base is <root>/<slug>/dist when it exists and
// <root>/<slug> otherwise; directories resolve to their index.html.
func (h *Handler) Resolve(slug, rest string) (string, error) {
	if !modules.ValidSlug(slug) {
		return "", &AssetPathError{Slug: slug, Path: rest, Reason: "invalid module slug"}
	}
	if strings.Contains(rest, "..") {
		return "", &AssetPathError{Slug: slug, Path: rest, Reason: "path must not contain .."}
	}

	base, err := h.baseDir(slug)
	if err != nil {
		return "", err
	}

	target := filepath.Join(base, filepath.FromSlash(strings.TrimPrefix(rest, "/")))
	if !within(base, target) {
		return "", &AssetPathError{Slug: slug, Path: rest, Reason: "path resolves outside of the module directory"}
	}
	target, err = h.follow(base, target, slug, rest)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(target)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		target, err = h.follow(base, filepath.Join(target, indexFile), slug, rest)
		if err != nil {
			return "", err
		}
		if info, err = os.Stat(target); err != nil {
			return "", err
		}
	}
	if !info.Mode().IsRegular() {
		return "", fs.ErrNotExist
	}
	return target, nil
}

// baseDir returns the symlink free directory assets are served from.
func (h *Handler) baseDir(slug string) (string, error) {
	root, err := filepath.Abs(filepath.Join(h.root, slug))
	if err != nil {
		return "", err
	}
	base := root
	if st, err := os.Stat(filepath.Join(root, "dist")); err == nil && st.IsDir() {
		base = filepath.Join(root, "dist")
	}
	return filepath.EvalSymlinks(base)
}

// follow resolves every symlink in p and makes sure the result is still
// inside base.
func (h *Handler) follow(base, p, slug, rest string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", err
	}
	if !within(base, resolved) {
		return "", &AssetPathError{Slug: slug, Path: rest, Reason: "path resolves outside of the module directory"}
	}
	return resolved, nil
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, p string) {
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "asset not found")
			return
		}
		log.WithField("path", p).WithField("error", err).Error("assets: failed to open file")
		writeError(w, http.StatusInternalServerError, "failed to read asset")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read asset")
		return
	}

	w.Header().Set("Content-Type", ContentType(p))
	if filepath.Base(p) == indexFile {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

var contentTypes = map[string]string{
	".html":  "text/html",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".css":   "text/css",
	".json":  "application/json",
	".ico":   "image/x-icon",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// ContentType returns the MIME type served for the file at p.
func ContentType(p string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(p))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
