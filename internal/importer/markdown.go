package importer

import (
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/parser"
)

// Markdown parses one document: frontmatter supplies the metadata and the
// trimmed body becomes the content. A missing or non-string title fails.
func Markdown(name string, data []byte) (models.Candidate, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return models.Candidate{}, invalidf("failed to parse Markdown file %s: %v", name, err)
	}
	fm := res.Frontmatter

	title, ok := fm["title"].(string)
	if !ok || title == "" {
		return models.Candidate{}, invalidf("failed to parse Markdown file %s: title missing or invalid in frontmatter", name)
	}

	return models.Candidate{
		Title:     title,
		Content:   strings.TrimSpace(res.Body),
		Category:  stringOr(fm, "category", models.DefaultCategory),
		Tags:      coerceTags(fm["tags"]),
		Summary:   stringField(fm, "summary"),
		CreatedAt: frontmatterTime(fm["createdAt"]),
		UpdatedAt: frontmatterTime(fm["updatedAt"]),
	}, nil
}

// frontmatterTime accepts strings and YAML timestamps that parse as a date
// and renders them canonically. Anything else is left for the store to default.
func frontmatterTime(v any) string {
	switch v.(type) {
	case string, time.Time:
	default:
		return ""
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return ""
	}
	return models.FormatTime(t)
}
