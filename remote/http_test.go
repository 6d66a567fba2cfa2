package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithCustomHeaders(t *testing.T) {
	customHeaders := map[string]string{
		"CF-Access-Client-Id":     "test-client-id",
		"CF-Access-Client-Secret": "test-client-secret",
	}

	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Clone())
		_, _ = w.Write([]byte("PK"))
	}))
	defer srv.Close()

	client := New(WithCustomHeaders(customHeaders))
	p := filepath.Join(t.TempDir(), "archive.zip")
	if _, err := client.DownloadFile(context.Background(), srv.URL+"/demo.zip", "secret-token", p); err != nil {
		t.Fatalf("expected download to succeed, got %v", err)
	}

	h := seen.Load().(http.Header)
	if h.Get("CF-Access-Client-Id") != "test-client-id" {
		t.Fatalf("expected custom header to be forwarded, got %q", h.Get("CF-Access-Client-Id"))
	}
	if h.Get("Authorization") != "Bearer secret-token" {
		t.Fatalf("expected bearer token to be forwarded, got %q", h.Get("Authorization"))
	}
}

func TestWithCustomHeadersNil(t *testing.T) {
	option := WithCustomHeaders(nil)
	if option == nil {
		t.Fatal("WithCustomHeaders should not return nil even with nil input")
	}
	if client := New(WithCustomHeaders(nil)); client == nil {
		t.Fatal("client should not be nil")
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	client := New(WithRetries(3), WithBackoff(time.Millisecond))
	p := filepath.Join(t.TempDir(), "archive.zip")
	n, err := client.DownloadFile(context.Background(), srv.URL, "", p)
	if err != nil {
		t.Fatalf("expected download to succeed after retries, got %v", err)
	}
	if n != int64(len("archive-bytes")) {
		t.Fatalf("unexpected byte count %d", n)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	b, _ := os.ReadFile(p)
	if string(b) != "archive-bytes" {
		t.Fatalf("unexpected file content %q", b)
	}
}

func TestDownloadDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(WithRetries(3), WithBackoff(time.Millisecond))
	p := filepath.Join(t.TempDir(), "archive.zip")
	_, err := client.DownloadFile(context.Background(), srv.URL, "", p)

	var re *RequestError
	if !errors.As(err, &re) || re.StatusCode != http.StatusForbidden {
		t.Fatalf("expected a 403 request error, got %v", err)
	}
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatal("expected request errors to match ErrDownloadFailed")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatal("expected partial file to be removed")
	}
}

func TestDownloadGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(WithRetries(1), WithBackoff(time.Millisecond))
	_, err := client.DownloadFile(context.Background(), srv.URL, "", filepath.Join(t.TempDir(), "a.zip"))
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://example.com/a.zip", "/relative/path.zip"} {
		if _, err := ValidateURL(raw); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("expected %q to be rejected, got %v", raw, err)
		}
	}
	if _, err := ValidateURL("https://example.com/modules/demo.zip"); err != nil {
		t.Errorf("expected https url to be accepted, got %v", err)
	}
}
