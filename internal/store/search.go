package store

import (
	"strings"

	"github.com/starford/tome/internal/models"
)

// Query filters the collection. Zero fields match everything.
type Query struct {
	// Text matches case-insensitively inside title, content, category,
	// summary or any tag.
	Text string
	// Category and Tag are exact, case-insensitive filters.
	Category string
	Tag      string
}

// Search returns matching items in insertion order.
func (s *Store) Search(q Query) []models.KnowledgeItem {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := []models.KnowledgeItem{}
	for _, it := range s.Items() {
		if q.Category != "" && !strings.EqualFold(it.Category, q.Category) {
			continue
		}
		if q.Tag != "" && !hasTag(it.Tags, q.Tag) {
			continue
		}
		if text != "" && !matchesText(it, text) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func matchesText(it models.KnowledgeItem, lower string) bool {
	if strings.Contains(strings.ToLower(it.Title), lower) ||
		strings.Contains(strings.ToLower(it.Content), lower) ||
		strings.Contains(strings.ToLower(it.Category), lower) ||
		strings.Contains(strings.ToLower(it.Summary), lower) {
		return true
	}
	for _, t := range it.Tags {
		if strings.Contains(strings.ToLower(t), lower) {
			return true
		}
	}
	return false
}

// Categories returns the distinct categories in first-seen order.
func (s *Store) Categories() []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, it := range s.Items() {
		if _, ok := seen[it.Category]; ok {
			continue
		}
		seen[it.Category] = struct{}{}
		out = append(out, it.Category)
	}
	return out
}
