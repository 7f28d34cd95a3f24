// Package testutil provides shared test doubles for storage and seeding.
package testutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/tome/internal/storage"
)

// ErrInjected is returned by MemStorage when a failure is forced.
var ErrInjected = errors.New("injected failure")

// MemStorage is an in-memory storage.Storage with failure injection.
type MemStorage struct {
	mu       sync.Mutex
	data     map[string][]byte
	FailSet  bool
	FailGet  bool
	SetCalls int
}

// NewMemStorage returns an empty MemStorage.
func NewMemStorage() *MemStorage {
	return &MemStorage{data: map[string][]byte{}}
}

// Get implements storage.Storage.
func (m *MemStorage) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet {
		return nil, false, ErrInjected
	}
	v, ok := m.data[key]
	return append([]byte(nil), v...), ok, nil
}

// Set implements storage.Storage.
func (m *MemStorage) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.FailSet {
		return ErrInjected
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Remove implements storage.Storage.
func (m *MemStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close implements storage.Storage.
func (m *MemStorage) Close() error { return nil }

// Raw returns the stored bytes for key without failure injection.
func (m *MemStorage) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Put stores value for key without counting a Set call.
func (m *MemStorage) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

var _ storage.Storage = (*MemStorage)(nil)

// Seed is a seed.Source that returns fixed data and counts fetches.
type Seed struct {
	Data  []byte
	Err   error
	calls atomic.Int32
}

// Fetch implements seed.Source.
func (s *Seed) Fetch(context.Context) ([]byte, error) {
	s.calls.Add(1)
	return s.Data, s.Err
}

// Calls returns the number of Fetch calls.
func (s *Seed) Calls() int { return int(s.calls.Load()) }

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Logger returns a logger that discards output unless -v is set.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
