package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/sse"
	"github.com/starford/tome/internal/store"
	"github.com/starford/tome/internal/testutil"
)

func testConfig(t *testing.T, backend string) *Config {
	t.Helper()
	t.Setenv("API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Storage.Backend = backend
	cfg.Storage.Path = filepath.Join(dir, "store")
	if backend == "sqlite" {
		cfg.Storage.Path = filepath.Join(dir, "tome.db")
	}
	cfg.Seed.Source = filepath.Join(dir, "seed.json")
	return cfg
}

func TestOpen_SeedsThenPersists(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			seedJSON := `[{"id":"s1","title":"Seeded","content":"c","category":"Docs","tags":["a"],"createdAt":"2024-01-01T00:00:00.000Z","updatedAt":"2024-01-01T00:00:00.000Z"}]`
			if err := os.WriteFile(cfg.Seed.Source, []byte(seedJSON), 0o644); err != nil {
				t.Fatal(err)
			}

			ctx := context.Background()
			app, err := Open(ctx, cfg, testutil.Logger(t), nil)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if res := app.Store.Bootstrap(ctx); res.Source != store.SourceSeed || res.Count != 1 {
				t.Errorf("bootstrap = %+v", res)
			}
			app.Service.Create(ctx, models.ItemInput{Title: "Mine", Content: "x"})
			if err := app.Close(); err != nil {
				t.Fatal(err)
			}

			// A second process sees the persisted collection, not the seed.
			_ = os.Remove(cfg.Seed.Source)
			app, err = Open(ctx, cfg, testutil.Logger(t), nil)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer app.Close()
			if res := app.Store.Bootstrap(ctx); res.Source != store.SourceStorage || res.Count != 2 {
				t.Errorf("bootstrap after reopen = %+v", res)
			}
		})
	}
}

func TestOpen_NilConfig(t *testing.T) {
	if _, err := Open(context.Background(), nil, nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := OpenApp(context.Background()); err == nil {
		t.Fatal("expected error without WithConfig")
	}
}

func TestWatchPath(t *testing.T) {
	ctx := context.Background()

	app, err := Open(ctx, testConfig(t, "file"), testutil.Logger(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()
	if p := app.watchPath(); !strings.HasSuffix(p, "knowledge_base_items.json") {
		t.Errorf("file watch path = %q", p)
	}

	sq, err := Open(ctx, testConfig(t, "sqlite"), testutil.Logger(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sq.Close()
	if p := sq.watchPath(); p != "" {
		t.Errorf("sqlite should not be watched, got %q", p)
	}
}

func TestHTTPHandler(t *testing.T) {
	ctx := context.Background()
	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	app, err := Open(ctx, testConfig(t, "file"), testutil.Logger(t), broker.PublishItemEvent)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()
	h := newHTTPHandler(app.Service, broker)

	for _, path := range []string{"/health/live", "/health/ready", "/api/items", "/api/ai/status"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var ready map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &ready); err != nil {
		t.Fatalf("ready body: %v", err)
	}
	if ready["source"] != store.SourceEmpty {
		t.Errorf("ready = %v", ready)
	}
}

func TestOpen_ChangeEventsReachBroker(t *testing.T) {
	ctx := context.Background()
	broker := sse.NewBroker(time.Hour)
	defer broker.Close()
	ch := broker.Subscribe()

	app, err := Open(ctx, testConfig(t, "file"), testutil.Logger(t), broker.PublishItemEvent)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()
	item := app.Service.Create(ctx, models.ItemInput{Title: "T", Content: "C"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "item.created") && strings.Contains(string(msg), item.ID) {
				return
			}
		case <-deadline:
			t.Fatal("item.created not delivered")
		}
	}
}
