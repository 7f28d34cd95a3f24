package seed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHTTP_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	data, err := New(srv.URL, time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("body = %q", data)
	}
}

func TestHTTP_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Fetch(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHTTP_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Fetch(context.Background())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want non-404 failure", err)
	}
}

func TestFile_MissingAndPresent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "seed.json")

	if _, err := New(p, 0).Fetch(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file err = %v, want ErrNotFound", err)
	}

	_ = os.WriteFile(p, []byte(`[{"id":"1"}]`), 0o644)
	data, err := New(p, 0).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != `[{"id":"1"}]` {
		t.Errorf("data = %q", data)
	}
}

func TestNone(t *testing.T) {
	if _, err := New("", 0).Fetch(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
