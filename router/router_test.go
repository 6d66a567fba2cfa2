package router

import (
	"archive/zip"
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/events"
	"github.com/priyxstudio/sgo/internal/database"
	"github.com/priyxstudio/sgo/internal/models"
	"github.com/priyxstudio/sgo/modules"
	"github.com/priyxstudio/sgo/ratelimit"
	"github.com/priyxstudio/sgo/remote"
	"github.com/priyxstudio/sgo/router/middleware"
	"github.com/priyxstudio/sgo/router/tokens"
)

type testEnv struct {
	router   *gin.Engine
	services *middleware.Services
	root     string
	admin    string
	user     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	c, err := config.NewAtPath("")
	if err != nil {
		t.Fatal(err)
	}
	c.Auth.JwtSecret = "router-test-secret"
	c.Api.Docs.Enabled = false
	c.Api.Metrics.Enabled = false
	c.Modules.Directory = filepath.Join(dir, "modules")
	c.System.TmpDirectory = filepath.Join(dir, "tmp")
	c.Database.Path = filepath.Join(dir, "sgo.db")
	config.Set(c)

	db, d, err := database.Open(c.Database, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sql, err := db.DB(); err == nil {
			_ = sql.Close()
		}
	})

	bus := events.NewBus()
	registry := modules.NewRegistry(db, d, bus)
	s := &middleware.Services{
		DB:        db,
		Registry:  registry,
		Installer: modules.NewInstaller(c.Modules.Directory, c.System.TmpDirectory, registry, modules.NewMigrationRunner(db, d, true), remote.New()),
		Config:    modules.NewConfigStore(db, d),
		Data:      modules.NewDataStore(db),
		Events:    bus,
		Throttle:  ratelimit.New(false, 1, 1),
	}

	env := &testEnv{router: Configure(s), services: s, root: c.Modules.Directory}
	env.admin = env.createUser(t, "admin@example.com", models.UserRoleAdmin)
	env.user = env.createUser(t, "user@example.com", models.UserRoleUser)
	return env
}

func (e *testEnv) createUser(t *testing.T, email string, role models.UserRole) string {
	t.Helper()
	u := models.User{Email: email, Name: email, Role: role, Active: true}
	if err := u.SetPassword("secret-password"); err != nil {
		t.Fatal(err)
	}
	if err := e.services.DB.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	token, _, err := tokens.NewSessionToken(&u, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, target, nil)
	case *http.Request:
		r = b
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = httptest.NewRequest(method, target, bytes.NewReader(raw))
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/modules/install", buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

var demoArchive = map[string]string{
	"manifest.json":   `{"slug":"demo","name":"Demo","version":"1.0.0"}`,
	"dist/index.html": "<html><body>demo</body></html>",
}

func (e *testEnv) installDemo(t *testing.T) *models.Module {
	t.Helper()
	w := e.do(t, http.MethodPost, "", e.admin, uploadRequest(t, "demo.zip", buildZip(t, demoArchive)))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	m, err := e.services.Registry.Get(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestInstallUploadServesAssets(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "", env.admin, uploadRequest(t, "demo.zip", buildZip(t, demoArchive)))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[InstallResponse](t, w)
	if res.Slug != "demo" || res.Name != "Demo" || res.Version != "1.0.0" || !res.Installed {
		t.Fatalf("unexpected install response %+v", res)
	}

	m, err := env.services.Registry.Get(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != models.ModuleTypeInstalled || !m.Active {
		t.Fatalf("expected an active installed module, got %+v", m)
	}

	w = env.do(t, http.MethodGet, "/modules/demo/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected asset to be served, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "text/html" {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != demoArchive["dist/index.html"] {
		t.Fatalf("unexpected body %q", w.Body.String())
	}

	if w := env.do(t, http.MethodGet, "/modules/..%2Fetc/passwd", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected traversal to be rejected, got %d", w.Code)
	}

	entries, _ := os.ReadDir(filepath.Join(filepath.Dir(env.root), "tmp"))
	if len(entries) != 0 {
		t.Fatalf("expected uploaded archive to be removed, found %d files", len(entries))
	}
}

func TestInstallRequiresAdministrator(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t, demoArchive)

	if w := env.do(t, http.MethodPost, "", "", uploadRequest(t, "demo.zip", archive)); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "", env.user, uploadRequest(t, "demo.zip", archive)); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a regular user, got %d", w.Code)
	}
}

func TestInstallRejectsBadArchives(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "", env.admin, uploadRequest(t, "demo.zip", []byte("definitely not a zip file")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non archive, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "", env.admin, uploadRequest(t, "demo.zip", buildZip(t, map[string]string{"dist/index.html": "x"})))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing manifest, got %d", w.Code)
	}
	if !strings.Contains(decode[ErrorResponse](t, w).Error, "manifest.json") {
		t.Fatalf("expected a missing manifest message, got %s", w.Body.String())
	}

	w = env.do(t, http.MethodPost, "", env.admin, uploadRequest(t, "demo.zip", buildZip(t, map[string]string{"manifest.json": `{"slug":"Bad","version":"1"}`})))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid manifest, got %d", w.Code)
	}
	if fields := decode[ErrorResponse](t, w).Fields; len(fields) != 3 {
		t.Fatalf("expected slug, name and version to be reported, got %+v", fields)
	}

	if w := env.do(t, http.MethodPost, "/api/modules/install-link", env.admin, InstallLinkRequest{URL: "ftp://example.com/a.zip"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid link, got %d", w.Code)
	}
}

func TestInstallLink(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t, demoArchive)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer registry-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	w := env.do(t, http.MethodPost, "/api/modules/install-link", env.admin, InstallLinkRequest{URL: srv.URL + "/demo.zip", AuthToken: "registry-token"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if res := decode[InstallResponse](t, w); res.Slug != "demo" || !res.Installed {
		t.Fatalf("unexpected response %+v", res)
	}

	w = env.do(t, http.MethodPost, "/api/modules/install-link", env.admin, InstallLinkRequest{URL: srv.URL + "/demo.zip"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected a rejected download to be reported as 400, got %d", w.Code)
	}
}

func TestModuleRegistryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.installDemo(t)

	w := env.do(t, http.MethodGet, "/api/modules", env.user, nil)
	if w.Code != http.StatusOK || len(decode[ModuleListResponse](t, w).Data) != 1 {
		t.Fatalf("expected one module, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPatch, "/api/modules/demo", env.admin, map[string]any{"active": false, "color": "#112233"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if m := decode[models.Module](t, w); m.Active || m.Color != "#112233" {
		t.Fatalf("unexpected module after update %+v", m)
	}
	if w := env.do(t, http.MethodPatch, "/api/modules/demo", env.admin, map[string]any{"color": "blue"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid color, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/modules?active=true", env.user, nil)
	if n := len(decode[ModuleListResponse](t, w).Data); n != 0 {
		t.Fatalf("expected inactive module to be filtered, got %d", n)
	}

	if w := env.do(t, http.MethodPut, "/api/modules/order", env.admin, ModuleOrderRequest{Slugs: []string{"ghost"}}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown slug, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/modules/ghost", env.user, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/api/modules/demo", env.user, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a regular user, got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/modules/demo", env.admin, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(env.root, "demo")); !os.IsNotExist(err) {
		t.Fatal("expected module directory to be removed")
	}
	if w := env.do(t, http.MethodGet, "/modules/demo/", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected assets to be gone, got %d", w.Code)
	}
}

func TestModuleConfigEndpoints(t *testing.T) {
	env := newTestEnv(t)
	m := env.installDemo(t)
	base := "/api/module-config/" + strconv.FormatUint(uint64(m.ID), 10)

	w := env.do(t, http.MethodPut, base+"/theme", env.user, ModuleConfigRequest{Value: "dark"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if v := decode[models.ModuleConfig](t, w); v.Value != "dark" || v.Type != "string" {
		t.Fatalf("unexpected setting %+v", v)
	}

	w = env.do(t, http.MethodPut, base+"/theme", env.user, ModuleConfigRequest{Value: "3", Type: "number"})
	if v := decode[models.ModuleConfig](t, w); v.Value != "3" || v.Type != "number" {
		t.Fatalf("expected upsert to replace the value, got %+v", v)
	}

	w = env.do(t, http.MethodGet, base, env.user, nil)
	if list := decode[ModuleConfigListResponse](t, w).Data; len(list) != 1 {
		t.Fatalf("expected a single setting, got %d", len(list))
	}

	if w := env.do(t, http.MethodDelete, base+"/theme", env.user, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, base+"/theme", env.user, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/module-config/9999", env.user, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown module, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/module-config/abc", env.user, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", w.Code)
	}
}

func TestModuleDataEndpoints(t *testing.T) {
	env := newTestEnv(t)
	m := env.installDemo(t)
	base := "/api/module-data/" + strconv.FormatUint(uint64(m.ID), 10) + "/contacts"

	w := env.do(t, http.MethodPost, base, env.user, map[string]any{"data": map[string]any{"name": "Ada"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if id := decode[models.ModuleData](t, w).EntityID; id == "" {
		t.Fatal("expected a generated entity id")
	}

	body := map[string]any{"id": "c1", "data": map[string]any{"name": "Grace", "address": map[string]any{"city": "NYC", "zip": "10001"}}}
	if w := env.do(t, http.MethodPost, base, env.user, body); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, base, env.user, body); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a duplicate id, got %d", w.Code)
	}

	w = env.do(t, http.MethodPatch, base+"/c1", env.user, map[string]any{"data": map[string]any{"address": map[string]any{"city": "Boston"}}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var doc map[string]any
	if err := json.Unmarshal(decode[models.ModuleData](t, w).Data, &doc); err != nil {
		t.Fatal(err)
	}
	address := doc["address"].(map[string]any)
	if doc["name"] != "Grace" || address["city"] != "Boston" || address["zip"] != "10001" {
		t.Fatalf("unexpected merged document %v", doc)
	}

	w = env.do(t, http.MethodPut, base+"/c1", env.user, map[string]any{"data": map[string]any{"name": "Replaced"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var replaced map[string]any
	if err := json.Unmarshal(decode[models.ModuleData](t, w).Data, &replaced); err != nil {
		t.Fatal(err)
	}
	if _, ok := replaced["address"]; ok || replaced["name"] != "Replaced" {
		t.Fatalf("expected replace to drop old keys, got %v", replaced)
	}

	w = env.do(t, http.MethodGet, base+"?limit=1", env.user, nil)
	if list := decode[ModuleDataListResponse](t, w).Data; len(list) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(list))
	}

	if w := env.do(t, http.MethodPost, base, env.user, map[string]any{"id": "empty"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing document, got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, base+"/c1", env.user, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, base+"/c1", env.user, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: " Admin@Example.com ", Password: "secret-password"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[LoginResponse](t, w)
	if res.Token == "" || res.User == nil || res.User.Role != models.UserRoleAdmin {
		t.Fatalf("unexpected login response %+v", res)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatal("password hash must never be serialized")
	}

	w = env.do(t, http.MethodGet, "/api/auth/me", res.Token, nil)
	if w.Code != http.StatusOK || decode[models.User](t, w).Email != "admin@example.com" {
		t.Fatalf("unexpected me response %d: %s", w.Code, w.Body.String())
	}

	if w := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "admin@example.com", Password: "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/auth/me", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", w.Code)
	}
}

func TestLoginIsThrottled(t *testing.T) {
	env := newTestEnv(t)
	env.services.Throttle = ratelimit.New(true, 1, 2)
	env.router = Configure(env.services)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "admin@example.com", Password: "wrong"})
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusUnauthorized || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestHealthAndDiscoveryDisabled(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/modules/discovery", env.admin, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/modules/discovery/scan", env.admin, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 without a discovery service, got %d", w.Code)
	}
}
