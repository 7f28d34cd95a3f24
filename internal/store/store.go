// Package store owns the canonical in-memory knowledge base and its
// persistence. Every read and write of persisted state goes through Store.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/seed"
	"github.com/starford/tome/internal/storage"
)

// DefaultKey is the storage key that holds the serialized collection.
const DefaultKey = "knowledge_base_items"

// Change kinds reported to the OnChange callback.
const (
	EventCreated = "item.created"
	EventUpdated = "item.updated"
	EventDeleted = "item.deleted"
	EventLoaded  = "items.loaded"
)

// ChangeFunc is invoked after each successful in-memory mutation.
// id is empty for EventLoaded.
type ChangeFunc func(kind, id string)

// Store is the single source of truth for the collection.
type Store struct {
	mu    sync.Mutex
	items []models.KnowledgeItem

	storage  storage.Storage
	seed     seed.Source
	key      string
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
	onChange ChangeFunc

	bootOnce   sync.Once
	bootResult BootstrapResult

	// lastSum is the checksum of the blob last written to or read from storage.
	lastSum string
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides id generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithOnChange registers a mutation callback.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Store) { s.onChange = fn }
}

// New creates an empty store. Call Load(ctx, nil) or Bootstrap before use.
func New(st storage.Storage, src seed.Source, opts ...Option) *Store {
	s := &Store{
		items:   []models.KnowledgeItem{},
		storage: st,
		seed:    src,
		key:     DefaultKey,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  slog.Default(),
	}
	if s.seed == nil {
		s.seed = seed.None{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the collection with the normalized candidates and persists it.
// A nil slice runs the bootstrap sequence instead.
func (s *Store) Load(ctx context.Context, candidates []models.Candidate) error {
	if candidates == nil {
		s.Bootstrap(ctx)
		return nil
	}

	s.mu.Lock()
	now := s.now()
	items := make([]models.KnowledgeItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, models.Normalize(c, now, s.newID))
	}
	s.items = s.dedupe(items)
	s.persistLocked()
	s.mu.Unlock()

	s.emit(EventLoaded, "")
	return nil
}

// Add appends a new item and persists the collection. A failed write is
// logged; the returned item is kept in memory either way.
func (s *Store) Add(_ context.Context, in models.ItemInput) models.KnowledgeItem {
	s.mu.Lock()
	item := models.Normalize(models.CandidateFromInput(in), s.now(), s.newID)
	s.items = append(s.items, item)
	s.persistLocked()
	s.mu.Unlock()

	s.emit(EventCreated, item.ID)
	return item.Clone()
}

// Update merges patch over the item with the same id and refreshes UpdatedAt.
// An unknown id is a no-op; ok reports whether an item matched.
func (s *Store) Update(_ context.Context, patch models.ItemPatch) (item models.KnowledgeItem, ok bool) {
	s.mu.Lock()
	idx := s.indexLocked(patch.ID)
	if idx < 0 {
		s.mu.Unlock()
		return models.KnowledgeItem{}, false
	}
	cur := s.items[idx]
	patch.Apply(&cur)
	now := s.now()
	if created, err := time.Parse(time.RFC3339, cur.CreatedAt); err == nil && now.Before(created) {
		now = created
	}
	cur.UpdatedAt = models.FormatTime(now)
	s.items[idx] = cur
	s.persistLocked()
	s.mu.Unlock()

	s.emit(EventUpdated, cur.ID)
	return cur.Clone(), true
}

// Delete removes the item with id and persists the resulting collection.
// ok reports whether an item was removed.
func (s *Store) Delete(_ context.Context, id string) (ok bool) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx >= 0 {
		s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	}
	s.persistLocked()
	s.mu.Unlock()

	if idx >= 0 {
		s.emit(EventDeleted, id)
	}
	return idx >= 0
}

// Items returns a copy of the collection in insertion order.
func (s *Store) Items() []models.KnowledgeItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.KnowledgeItem, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

// Get returns the item with id.
func (s *Store) Get(id string) (models.KnowledgeItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.KnowledgeItem{}, false
	}
	return s.items[idx].Clone(), true
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// dedupe assigns fresh ids to later items that repeat an earlier id.
func (s *Store) dedupe(items []models.KnowledgeItem) []models.KnowledgeItem {
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		if _, dup := seen[items[i].ID]; dup {
			fresh := s.newID()
			s.logger.Warn("duplicate id replaced",
				slog.String("id", items[i].ID),
				slog.String("new_id", fresh))
			items[i].ID = fresh
		}
		seen[items[i].ID] = struct{}{}
	}
	return items
}

// persistLocked writes the whole collection under the storage key.
// Failures are logged and do not roll back memory.
func (s *Store) persistLocked() {
	blob, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("persist: encode failed", slog.String("error", err.Error()))
		return
	}
	if err := s.storage.Set(s.key, blob); err != nil {
		s.logger.Error("persist: write failed",
			slog.String("key", s.key),
			slog.String("error", err.Error()))
		return
	}
	s.lastSum = checksum(blob)
}

func (s *Store) emit(kind, id string) {
	if s.onChange != nil {
		s.onChange(kind, id)
	}
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
