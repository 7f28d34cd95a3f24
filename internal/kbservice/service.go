// Package kbservice coordinates the store, import/export adapters and the
// generative-text client. HTTP, MCP and CLI front ends all go through it.
package kbservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/tome/internal/ai"
	"github.com/starford/tome/internal/apperr"
	"github.com/starford/tome/internal/exporter"
	"github.com/starford/tome/internal/importer"
	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/store"
)

// Export formats.
const (
	ExportJSON = "json"
	ExportZIP  = "zip"
)

// ImportResult reports a completed import.
type ImportResult struct {
	Format importer.Format `json:"format"`
	Count  int             `json:"count"`
}

// Download is a rendered export ready to be written or served.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AIStatus describes the generative-text integration.
type AIStatus struct {
	Enabled bool   `json:"enabled"`
	Model   string `json:"model"`
}

// Service is the application facade over the knowledge base.
type Service struct {
	store    *store.Store
	importer *importer.Importer
	ai       *ai.Client
	logger   *slog.Logger
}

// NewService creates a service. A nil ai client disables AI features.
func NewService(st *store.Store, im *importer.Importer, client *ai.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if im == nil {
		im = importer.New(logger)
	}
	return &Service{store: st, importer: im, ai: client, logger: logger}
}

// List returns items matching q in insertion order.
func (s *Service) List(_ context.Context, q store.Query) []models.KnowledgeItem {
	return s.store.Search(q)
}

// Categories returns the distinct categories in use.
func (s *Service) Categories(_ context.Context) []string {
	return s.store.Categories()
}

// Get returns one item or apperr.ErrNotFound.
func (s *Service) Get(_ context.Context, id string) (models.KnowledgeItem, error) {
	item, ok := s.store.Get(id)
	if !ok {
		return models.KnowledgeItem{}, apperr.ErrNotFound
	}
	return item, nil
}

// Create adds a new item.
func (s *Service) Create(ctx context.Context, in models.ItemInput) models.KnowledgeItem {
	return s.store.Add(ctx, in)
}

// Update applies patch and returns the result, or apperr.ErrNotFound.
func (s *Service) Update(ctx context.Context, patch models.ItemPatch) (models.KnowledgeItem, error) {
	item, ok := s.store.Update(ctx, patch)
	if !ok {
		return models.KnowledgeItem{}, apperr.ErrNotFound
	}
	return item, nil
}

// Delete removes an item. It reports whether the id existed; deleting an
// unknown id is not an error.
func (s *Service) Delete(ctx context.Context, id string) bool {
	return s.store.Delete(ctx, id)
}

// Import parses data and replaces the whole collection with the result.
// On failure the collection is left unchanged.
func (s *Service) Import(ctx context.Context, name string, data []byte) (ImportResult, error) {
	cands, format, err := s.importer.Import(name, data)
	if err != nil {
		return ImportResult{Format: format}, err
	}
	if err := s.store.Load(ctx, cands); err != nil {
		return ImportResult{Format: format}, fmt.Errorf("kbservice: load: %w", err)
	}
	s.logger.Info("import complete",
		slog.String("file", name),
		slog.String("format", string(format)),
		slog.Int("items", len(cands)))
	return ImportResult{Format: format, Count: len(cands)}, nil
}

// Export renders the collection. An empty collection is apperr.ErrEmptyCollection.
func (s *Service) Export(_ context.Context, format string) (Download, error) {
	items := s.store.Items()
	if len(items) == 0 {
		return Download{}, apperr.ErrEmptyCollection
	}
	switch strings.ToLower(format) {
	case "", ExportJSON:
		data, err := exporter.JSON(items)
		if err != nil {
			return Download{}, err
		}
		return Download{Filename: exporter.Filename, ContentType: "application/json", Data: data}, nil
	case ExportZIP:
		data, err := exporter.MarkdownZip(items)
		if err != nil {
			return Download{}, err
		}
		return Download{Filename: exporter.ZIPFilename, ContentType: "application/zip", Data: data}, nil
	default:
		return Download{}, fmt.Errorf("%w: export format %q", apperr.ErrUnsupportedFormat, format)
	}
}

// Summarize generates a summary for the item's content and stores it on the item.
func (s *Service) Summarize(ctx context.Context, id string) (models.KnowledgeItem, error) {
	if !s.ai.Enabled() {
		return models.KnowledgeItem{}, apperr.ErrAIDisabled
	}
	item, ok := s.store.Get(id)
	if !ok {
		return models.KnowledgeItem{}, apperr.ErrNotFound
	}
	if strings.TrimSpace(item.Content) == "" {
		return models.KnowledgeItem{}, apperr.ErrEmptyContent
	}
	summary, err := s.ai.Summarize(ctx, item.Content)
	if err != nil {
		return models.KnowledgeItem{}, err
	}
	updated, ok := s.store.Update(ctx, models.ItemPatch{ID: id, Summary: &summary})
	if !ok {
		// Deleted while the request was in flight.
		return models.KnowledgeItem{}, apperr.ErrNotFound
	}
	return updated, nil
}

// Ask answers question using every item as context.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", apperr.ErrEmptyQuestion
	}
	if !s.ai.Enabled() {
		return "", apperr.ErrAIDisabled
	}
	items := s.store.Items()
	if len(items) == 0 {
		return "", apperr.ErrEmptyCollection
	}
	return s.ai.Answer(ctx, ai.BuildContext(items), question)
}

// AIStatus reports whether AI features are available.
func (s *Service) AIStatus() AIStatus {
	return AIStatus{Enabled: s.ai.Enabled(), Model: s.ai.Model()}
}

// Ready reports whether the initial load has completed.
func (s *Service) Ready(ctx context.Context) store.BootstrapResult {
	return s.store.Bootstrap(ctx)
}
