// Package importer turns externally supplied JSON, Markdown and ZIP payloads
// into store candidates. A successful import always yields at least one
// candidate; anything else is an error wrapping apperr.ErrInvalidImport.
package importer

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cast"

	"github.com/starford/tome/internal/apperr"
	"github.com/starford/tome/internal/models"
)

// Format identifies an import payload type.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatZIP      Format = "zip"
)

// Importer parses import payloads, logging skipped records.
type Importer struct {
	logger *slog.Logger
}

// New creates an Importer. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{logger: logger}
}

// Import detects the format of data (named name) and parses it.
func (im *Importer) Import(name string, data []byte) ([]models.Candidate, Format, error) {
	format, err := Detect(name, data)
	if err != nil {
		return nil, "", err
	}
	var out []models.Candidate
	switch format {
	case FormatJSON:
		out, err = im.JSON(data)
	case FormatMarkdown:
		var c models.Candidate
		c, err = Markdown(name, data)
		out = []models.Candidate{c}
	case FormatZIP:
		out, err = im.ZIP(data)
	}
	if err != nil {
		return nil, format, err
	}
	return out, format, nil
}

// Detect picks a format from the file extension, falling back to content
// sniffing when the extension is missing or unknown.
func Detect(name string, data []byte) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".zip":
		return FormatZIP, nil
	}

	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		switch {
		case mt.Is("application/zip"):
			return FormatZIP, nil
		case mt.Is("application/json"):
			return FormatJSON, nil
		case mt.Is("text/plain"):
			if strings.HasPrefix(strings.TrimLeft(string(data), "\ufeff\r\n"), "---") {
				return FormatMarkdown, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s (expected .json, .md or .zip)", apperr.ErrUnsupportedFormat, name)
}

// coerceTags converts a decoded tags value into non-blank strings. Values
// that are not a list yield an empty slice.
func coerceTags(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, raw := range list {
		s, err := cast.ToStringE(raw)
		if err != nil {
			s = fmt.Sprint(raw)
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalidImport, fmt.Sprintf(format, args...))
}
