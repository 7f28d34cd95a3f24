// Package exporter serializes the knowledge base for download.
package exporter

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/parser"
)

// Fixed download names.
const (
	Filename    = "knowledge_base_export.json"
	ZIPFilename = "knowledge_base_export.zip"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// JSON returns the collection as pretty-printed JSON.
func JSON(items []models.KnowledgeItem) ([]byte, error) {
	if items == nil {
		items = []models.KnowledgeItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("exporter: encode json: %w", err)
	}
	return data, nil
}

// WriteFile writes an export payload into dir under name and returns its path.
func WriteFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("exporter: create %s: %w", dir, err)
	}
	p := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("exporter: write %s: %w", p, err)
	}
	return p, nil
}

// frontmatter is the field order used for Markdown exports.
type frontmatter struct {
	Title     string   `yaml:"title"`
	Category  string   `yaml:"category"`
	Tags      []string `yaml:"tags"`
	Summary   string   `yaml:"summary,omitempty"`
	CreatedAt string   `yaml:"createdAt"`
	UpdatedAt string   `yaml:"updatedAt"`
}

// Markdown renders one item as a frontmatter document.
func Markdown(item models.KnowledgeItem) ([]byte, error) {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return parser.Render(frontmatter{
		Title:     item.Title,
		Category:  item.Category,
		Tags:      tags,
		Summary:   item.Summary,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}, item.Content)
}

// MarkdownZip packs one Markdown file per item into a ZIP archive.
func MarkdownZip(items []models.KnowledgeItem) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, item := range items {
		doc, err := Markdown(item)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(EntryName(item))
		if err != nil {
			return nil, fmt.Errorf("exporter: zip entry: %w", err)
		}
		if _, err := w.Write(doc); err != nil {
			return nil, fmt.Errorf("exporter: zip write: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("exporter: zip close: %w", err)
	}
	return buf.Bytes(), nil
}

// EntryName derives a stable archive file name from the title and id.
func EntryName(item models.KnowledgeItem) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(item.Title), "-"), "-")
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	if slug == "" {
		slug = "item"
	}
	id := item.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return slug + "-" + id + ".md"
}
