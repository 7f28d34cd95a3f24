package importer

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/starford/tome/internal/models"
)

// JSON parses an array of item-shaped objects. Elements that are not objects
// or lack string title and content are skipped with a warning.
func (im *Importer) JSON(data []byte) ([]models.Candidate, error) {
	var decoded any
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &decoded); err != nil {
		return nil, invalidf("failed to parse JSON file: %v", err)
	}
	list, ok := decoded.([]any)
	if !ok {
		return nil, invalidf("JSON file content is not a valid array of knowledge items")
	}

	out := make([]models.Candidate, 0, len(list))
	for i, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			im.logger.Warn("import: skipping JSON element: not an object", slog.Int("index", i))
			continue
		}
		title, okTitle := obj["title"].(string)
		content, okContent := obj["content"].(string)
		if !okTitle || !okContent {
			im.logger.Warn("import: skipping JSON element: missing title or content", slog.Int("index", i))
			continue
		}
		out = append(out, models.Candidate{
			ID:        stringField(obj, "id"),
			Title:     title,
			Content:   content,
			Category:  stringOr(obj, "category", models.DefaultCategory),
			Tags:      coerceTags(obj["tags"]),
			Summary:   stringField(obj, "summary"),
			CreatedAt: stringField(obj, "createdAt"),
			UpdatedAt: stringField(obj, "updatedAt"),
		})
	}

	switch {
	case len(out) == 0 && len(list) > 0:
		return nil, invalidf("JSON file contained %d item(s), but none were valid knowledge items", len(list))
	case len(out) == 0:
		return nil, invalidf("no valid knowledge items found in the JSON file")
	}
	return out, nil
}

var utf8BOM = []byte("\ufeff")

// stringField returns obj[key] when it is a string and "" otherwise.
func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func stringOr(obj map[string]any, key, def string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return def
}
