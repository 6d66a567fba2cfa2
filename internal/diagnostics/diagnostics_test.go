package diagnostics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/models"
)

type staticModules []models.Module

func (s staticModules) List(context.Context, bool) ([]models.Module, error) {
	return s, nil
}

func TestGenerateDiagnosticsReport(t *testing.T) {
	c, err := config.NewAtPath("")
	if err != nil {
		t.Fatal(err)
	}
	c.System.LogDirectory = t.TempDir()
	c.Api.Host = "10.1.2.3"
	config.Set(c)

	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, "line "+string(rune('a'+i)))
	}
	if err := os.WriteFile(filepath.Join(c.System.LogDirectory, "sgo.log"), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	mods := staticModules{{Slug: "demo", Version: "1.0.0", Type: models.ModuleTypeInstalled, Active: true}}
	report, err := GenerateDiagnosticsReport(context.Background(), mods, false, true, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "demo") || !strings.Contains(report, "1.0.0") {
		t.Fatalf("expected module listing in report:\n%s", report)
	}
	if strings.Contains(report, "10.1.2.3") {
		t.Fatal("expected endpoints to be redacted")
	}
	if !strings.Contains(report, "line j") || strings.Contains(report, "line g") {
		t.Fatalf("expected only the last three log lines:\n%s", report)
	}

	report, err = GenerateDiagnosticsReport(context.Background(), nil, true, false, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "10.1.2.3") {
		t.Fatal("expected endpoints to be included")
	}
}

func TestUploadReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("content") != "report" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"id":"abc","url":"https://mclo.gs/abc"}`))
	}))
	defer srv.Close()

	u, err := UploadReport(context.Background(), srv.URL, "report")
	if err != nil {
		t.Fatal(err)
	}
	if u != "https://mclo.gs/abc" {
		t.Fatalf("unexpected url %q", u)
	}

	if _, err := UploadReport(context.Background(), "", "report"); !errors.Is(err, ErrMissingUploadAPIURL) {
		t.Fatalf("expected ErrMissingUploadAPIURL, got %v", err)
	}
	if _, err := UploadReport(context.Background(), "not a url", "report"); !errors.Is(err, ErrInvalidUploadAPIURL) {
		t.Fatalf("expected ErrInvalidUploadAPIURL, got %v", err)
	}
}
