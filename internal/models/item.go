// Package models defines the domain types for Tome.
package models

import (
	"strings"
	"time"
)

// DefaultCategory is assigned to items that arrive without a category.
const DefaultCategory = "Uncategorized"

// TimeLayout is the canonical timestamp form: UTC, millisecond precision,
// lexically sortable.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// KnowledgeItem is a single note in the knowledge base. Its JSON form is the
// persisted, seed and export shape.
type KnowledgeItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
	Summary   string   `json:"summary,omitempty"`
}

// Clone returns a deep copy of the item.
func (k KnowledgeItem) Clone() KnowledgeItem {
	out := k
	out.Tags = append([]string{}, k.Tags...)
	return out
}

// ItemInput carries the user-supplied fields of a new item.
type ItemInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Summary  string   `json:"summary,omitempty"`
}

// ItemPatch is a partial update. Nil fields are left untouched.
type ItemPatch struct {
	ID       string    `json:"id"`
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Category *string   `json:"category,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Summary  *string   `json:"summary,omitempty"`
}

// Apply shallow-merges the patch over item. ID and CreatedAt are never
// touched. A blank category falls back to DefaultCategory and blank tags
// are dropped, as in Normalize.
func (p ItemPatch) Apply(item *KnowledgeItem) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Content != nil {
		item.Content = *p.Content
	}
	if p.Category != nil {
		item.Category = CategoryOrDefault(*p.Category)
	}
	if p.Tags != nil {
		item.Tags = CleanTags(*p.Tags)
	}
	if p.Summary != nil {
		item.Summary = *p.Summary
	}
}

// Candidate is a record on its way into the store, typically produced by an
// importer. Empty strings and a nil Tags slice mean "absent".
type Candidate struct {
	ID        string
	Title     string
	Content   string
	Category  string
	Tags      []string
	Summary   string
	CreatedAt string
	UpdatedAt string
}

// CandidateFromInput converts create input into a candidate without identity.
func CandidateFromInput(in ItemInput) Candidate {
	return Candidate{
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		Tags:     in.Tags,
		Summary:  in.Summary,
	}
}

// CandidateFromItem converts a stored item back into candidate form.
func CandidateFromItem(item KnowledgeItem) Candidate {
	return Candidate{
		ID:        item.ID,
		Title:     item.Title,
		Content:   item.Content,
		Category:  item.Category,
		Tags:      item.Tags,
		Summary:   item.Summary,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

// Normalize turns a candidate into a complete KnowledgeItem. Every path that
// creates or imports a record goes through here.
func Normalize(c Candidate, now time.Time, newID func() string) KnowledgeItem {
	stamp := FormatTime(now)
	item := KnowledgeItem{
		ID:        c.ID,
		Title:     c.Title,
		Content:   c.Content,
		Category:  CategoryOrDefault(c.Category),
		Tags:      CleanTags(c.Tags),
		Summary:   c.Summary,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if item.ID == "" {
		item.ID = newID()
	}
	if item.CreatedAt == "" {
		item.CreatedAt = stamp
	}
	if item.UpdatedAt == "" {
		item.UpdatedAt = stamp
	}
	return item
}

// CategoryOrDefault returns DefaultCategory for a blank category.
func CategoryOrDefault(category string) string {
	if strings.TrimSpace(category) == "" {
		return DefaultCategory
	}
	return category
}

// CleanTags trims tags and drops blank ones. The result is never nil.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// FormatTime renders t in the canonical timestamp form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
