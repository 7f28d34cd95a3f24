package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *File {
	t.Helper()
	fs, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return fs
}

func TestFile_SetAndGet(t *testing.T) {
	s := tempStore(t)
	value := []byte(`[{"id":"1"}]`)
	if err := s.Set("items", value); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get("items")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != string(value) {
		t.Errorf("value mismatch: got %q", got)
	}
}

func TestFile_GetMissing(t *testing.T) {
	s := tempStore(t)
	_, ok, err := s.Get("nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected missing key")
	}
}

func TestFile_Remove(t *testing.T) {
	s := tempStore(t)
	_ = s.Set("gone", []byte("bye"))
	if err := s.Remove("gone"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Get("gone"); ok {
		t.Error("key still present after remove")
	}
	if err := s.Remove("gone"); err != nil {
		t.Errorf("second remove should be a no-op: %v", err)
	}
}

func TestFile_InvalidKeys(t *testing.T) {
	s := tempStore(t)
	for _, k := range []string{"", "../escape", "a/b", `a\b`} {
		if err := s.Set(k, []byte("x")); err == nil {
			t.Errorf("expected error for key %q", k)
		}
	}
}

func TestFile_AtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempStore(t)
	_ = s.Set("atomic", []byte("original"))
	if err := s.Set("atomic", []byte("updated")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _, _ := s.Get("atomic")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".tome-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFile_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "tome-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFile(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
