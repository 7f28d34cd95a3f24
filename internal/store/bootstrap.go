package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/seed"
)

// Bootstrap sources.
const (
	SourceStorage = "storage"
	SourceSeed    = "seed"
	SourceEmpty   = "empty"
)

// BootstrapResult describes where the initial collection came from.
type BootstrapResult struct {
	Source string
	Count  int
	// Err is set when an unexpected failure forced an empty start.
	Err error
}

var errInvalidShape = errors.New("not an array of objects with an id")

// Bootstrap hydrates the store once per Store lifetime: persisted data wins
// when valid, then the seed resource, then an empty collection. Later calls
// return the first result without touching storage.
func (s *Store) Bootstrap(ctx context.Context) BootstrapResult {
	s.bootOnce.Do(func() {
		s.bootResult = s.bootstrap(ctx)
		s.logger.Info("bootstrap complete",
			slog.String("source", s.bootResult.Source),
			slog.Int("items", s.bootResult.Count))
		s.emit(EventLoaded, "")
	})
	return s.bootResult
}

func (s *Store) bootstrap(ctx context.Context) (res BootstrapResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			res = s.abandonLocked(fmt.Errorf("bootstrap panic: %v", r))
		}
	}()

	blob, ok, err := s.storage.Get(s.key)
	if err != nil {
		return s.abandonLocked(err)
	}
	if ok {
		items, decErr := s.decodeCollection(blob)
		if decErr == nil {
			s.items = items
			s.lastSum = checksum(blob)
			return BootstrapResult{Source: SourceStorage, Count: len(items)}
		}
		s.logger.Warn("bootstrap: persisted data is corrupted, clearing it",
			slog.String("key", s.key),
			slog.String("error", decErr.Error()))
		if err := s.storage.Remove(s.key); err != nil {
			return s.abandonLocked(err)
		}
	}

	data, err := s.seed.Fetch(ctx)
	switch {
	case errors.Is(err, seed.ErrNotFound):
		s.logger.Info("bootstrap: no seed resource, starting empty")
		s.items = []models.KnowledgeItem{}
		return BootstrapResult{Source: SourceEmpty}
	case err != nil:
		s.logger.Warn("bootstrap: seed fetch failed, starting empty", slog.String("error", err.Error()))
		s.items = []models.KnowledgeItem{}
		return BootstrapResult{Source: SourceEmpty}
	}

	items, err := s.decodeCollection(data)
	if err != nil {
		s.logger.Warn("bootstrap: seed resource is invalid, starting empty", slog.String("error", err.Error()))
		s.items = []models.KnowledgeItem{}
		return BootstrapResult{Source: SourceEmpty}
	}
	s.items = items
	s.persistLocked()
	return BootstrapResult{Source: SourceSeed, Count: len(items)}
}

// abandonLocked resets to an empty collection and clears persisted state.
func (s *Store) abandonLocked(cause error) BootstrapResult {
	s.logger.Error("bootstrap: unexpected failure, starting empty", slog.String("error", cause.Error()))
	s.items = []models.KnowledgeItem{}
	s.lastSum = ""
	if err := s.storage.Remove(s.key); err != nil {
		s.logger.Error("bootstrap: clear storage failed", slog.String("error", err.Error()))
	}
	return BootstrapResult{Source: SourceEmpty, Err: cause}
}

// Reload re-reads the persisted collection, replacing memory when the blob
// differs from what this store last wrote. Absent or invalid data leaves
// memory untouched. changed reports whether the collection was replaced.
func (s *Store) Reload(_ context.Context) (changed bool, err error) {
	s.mu.Lock()
	blob, ok, err := s.storage.Get(s.key)
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("store: reload: %w", err)
	}
	if !ok || checksum(blob) == s.lastSum {
		s.mu.Unlock()
		return false, nil
	}
	items, err := s.decodeCollection(blob)
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("store: reload: %w", err)
	}
	s.items = items
	s.lastSum = checksum(blob)
	s.mu.Unlock()

	s.emit(EventLoaded, "")
	return true, nil
}

// decodeCollection accepts only a JSON array whose elements are objects
// carrying an "id" field, then normalizes every element.
func (s *Store) decodeCollection(blob []byte) ([]models.KnowledgeItem, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(blob), []byte("[")) {
		return nil, errInvalidShape
	}
	var shapes []map[string]json.RawMessage
	if err := json.Unmarshal(blob, &shapes); err != nil {
		return nil, err
	}
	for i, obj := range shapes {
		if obj == nil {
			return nil, fmt.Errorf("element %d: %w", i, errInvalidShape)
		}
		if _, ok := obj["id"]; !ok {
			return nil, fmt.Errorf("element %d: %w", i, errInvalidShape)
		}
	}
	var raw []models.KnowledgeItem
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, err
	}
	now := s.now()
	items := make([]models.KnowledgeItem, 0, len(raw))
	for _, it := range raw {
		items = append(items, models.Normalize(models.CandidateFromItem(it), now, s.newID))
	}
	return s.dedupe(items), nil
}
