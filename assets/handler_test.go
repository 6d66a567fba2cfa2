package assets

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	. "github.com/franela/goblin"
)

func writeFile(t *testing.T, p string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHandler(t *testing.T) {
	g := Goblin(t)

	var root string
	var h *Handler
	do := func(method, target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
		return w
	}

	g.Describe("Handler", func() {
		g.BeforeEach(func() {
			root = t.TempDir()
			h = NewHandler(root)
			writeFile(t, filepath.Join(root, "demo", "dist", "index.html"), "<h1>demo</h1>")
			writeFile(t, filepath.Join(root, "demo", "dist", "assets", "app.js"), "console.log(1)")
			writeFile(t, filepath.Join(root, "demo", "dist", "assets", "font.woff2"), "font")
			writeFile(t, filepath.Join(root, "demo", "dist", "blob.bin"), "bin")
			writeFile(t, filepath.Join(root, "demo", "manifest.json"), `{"slug":"demo"}`)
			writeFile(t, filepath.Join(root, "plain", "index.html"), "<h1>plain</h1>")
			writeFile(t, filepath.Join(root, "secret.txt"), "secret")
		})

		g.Describe("serving", func() {
			g.It("serves index.html for the module root", func() {
				w := do(http.MethodGet, "/demo/")
				g.Assert(w.Code).Equal(http.StatusOK)
				g.Assert(w.Body.String()).Equal("<h1>demo</h1>")
				g.Assert(w.Header().Get("Content-Type")).Equal("text/html")
				g.Assert(w.Header().Get("Cache-Control")).Equal("no-cache")
			})

			g.It("serves index.html when no trailing path is given", func() {
				w := do(http.MethodGet, "/demo")
				g.Assert(w.Code).Equal(http.StatusOK)
				g.Assert(w.Body.String()).Equal("<h1>demo</h1>")
			})

			g.It("serves nested files with a mapped content type", func() {
				w := do(http.MethodGet, "/demo/assets/app.js")
				g.Assert(w.Code).Equal(http.StatusOK)
				g.Assert(w.Body.String()).Equal("console.log(1)")
				g.Assert(w.Header().Get("Content-Type")).Equal("application/javascript")
				g.Assert(w.Header().Get("Cache-Control")).Equal("public, max-age=3600")
			})

			g.It("falls back to a binary content type", func() {
				w := do(http.MethodGet, "/demo/blob.bin")
				g.Assert(w.Code).Equal(http.StatusOK)
				g.Assert(w.Header().Get("Content-Type")).Equal("application/octet-stream")
			})

			g.It("uses the module directory when there is no dist folder", func() {
				w := do(http.MethodGet, "/plain/")
				g.Assert(w.Code).Equal(http.StatusOK)
				g.Assert(w.Body.String()).Equal("<h1>plain</h1>")
			})

			g.It("does not expose files next to dist", func() {
				w := do(http.MethodGet, "/demo/manifest.json")
				g.Assert(w.Code).Equal(http.StatusNotFound)
			})

			g.It("answers HEAD requests without a body", func() {
				w := do(http.MethodHead, "/demo/assets/font.woff2")
				g.Assert(w.Code).Equal(http.StatusOK)
				g.Assert(w.Header().Get("Content-Type")).Equal("font/woff2")
				g.Assert(w.Body.Len()).Equal(0)
			})

			g.It("rejects other methods", func() {
				w := do(http.MethodPost, "/demo/")
				g.Assert(w.Code).Equal(http.StatusMethodNotAllowed)
			})
		})

		g.Describe("missing files", func() {
			g.It("returns 404 for unknown files", func() {
				g.Assert(do(http.MethodGet, "/demo/nope.js").Code).Equal(http.StatusNotFound)
			})

			g.It("returns 404 for unknown modules", func() {
				g.Assert(do(http.MethodGet, "/ghost/").Code).Equal(http.StatusNotFound)
			})
		})

		g.Describe("path validation", func() {
			g.It("rejects invalid slugs", func() {
				g.Assert(do(http.MethodGet, "/Demo/index.html").Code).Equal(http.StatusBadRequest)
				g.Assert(do(http.MethodGet, "/..%2Fetc/passwd").Code).Equal(http.StatusBadRequest)
			})

			g.It("rejects a slug of ../etc before touching the disk", func() {
				_, err := h.Resolve("../etc", "passwd")
				g.Assert(IsAssetPathError(err)).IsTrue()
			})

			g.It("rejects paths containing ..", func() {
				g.Assert(do(http.MethodGet, "/demo/../../secret.txt").Code).Equal(http.StatusBadRequest)
				g.Assert(do(http.MethodGet, "/demo/assets/%2E%2E/%2E%2E/secret.txt").Code).Equal(http.StatusBadRequest)

				_, err := h.Resolve("demo", "../../secret")
				g.Assert(IsAssetPathError(err)).IsTrue()
			})

			g.It("rejects symlinks that leave the module directory", func() {
				g.Assert(os.Symlink(root, filepath.Join(root, "demo", "dist", "leak"))).IsNil()
				w := do(http.MethodGet, "/demo/leak/secret.txt")
				g.Assert(w.Code).Equal(http.StatusBadRequest)
			})
		})
	})
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"index.html":  "text/html",
		"app.mjs":     "application/javascript",
		"style.CSS":   "text/css",
		"data.json":   "application/json",
		"favicon.ico": "image/x-icon",
		"logo.svg":    "image/svg+xml",
		"a.png":       "image/png",
		"a.jpeg":      "image/jpeg",
		"a.jpg":       "image/jpeg",
		"f.woff":      "font/woff",
		"archive.tar": "application/octet-stream",
		"README":      "application/octet-stream",
	}
	for name, want := range cases {
		if got := ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
}
