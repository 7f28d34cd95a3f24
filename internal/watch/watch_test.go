package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/storage"
	"github.com/starford/tome/internal/store"
	"github.com/starford/tome/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func watcherTestEnv(t *testing.T) (*storage.File, *store.Store, string) {
	t.Helper()
	fs, err := storage.NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(fs, nil, store.WithLogger(testutil.Logger(t)))
	st.Bootstrap(context.Background())
	p, err := fs.Path(store.DefaultKey)
	if err != nil {
		t.Fatal(err)
	}
	return fs, st, p
}

func TestWatch_ExternalWriteReloads(t *testing.T) {
	fs, st, p := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go watch(ctx, p, st, testutil.Logger(t), 20*time.Millisecond, func() { reloads.Add(1) })
	time.Sleep(100 * time.Millisecond)

	blob, _ := json.Marshal([]models.KnowledgeItem{{ID: "ext", Title: "External", Content: "c"}})
	if err := fs.Set(store.DefaultKey, blob); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		_, ok := st.Get("ext")
		return ok
	}, "external write not picked up by watcher")
	if reloads.Load() == 0 {
		t.Error("onReload not called")
	}
}

func TestWatch_OwnWritesIgnored(t *testing.T) {
	_, st, p := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go watch(ctx, p, st, testutil.Logger(t), 20*time.Millisecond, func() { reloads.Add(1) })
	time.Sleep(100 * time.Millisecond)

	st.Add(ctx, models.ItemInput{Title: "mine", Content: "c"})
	time.Sleep(300 * time.Millisecond)

	if n := reloads.Load(); n != 0 {
		t.Errorf("reloads = %d, want 0 for the store's own write", n)
	}
	if st.Len() != 1 {
		t.Errorf("len = %d", st.Len())
	}
}

func TestWatch_InvalidExternalWriteKeepsMemory(t *testing.T) {
	_, st, p := watcherTestEnv(t)
	st.Add(context.Background(), models.ItemInput{Title: "keep", Content: "c"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watch(ctx, p, st, testutil.Logger(t), 20*time.Millisecond, nil)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(p, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(filepath.Dir(p), "unrelated.json"), []byte("x"), 0o644)
	time.Sleep(300 * time.Millisecond)

	if items := st.Items(); len(items) != 1 || items[0].Title != "keep" {
		t.Errorf("items = %+v", items)
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	_, st, p := watcherTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Watch(ctx, p, st, testutil.Logger(t), nil) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
