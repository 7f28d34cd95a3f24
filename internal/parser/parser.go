// Package parser splits Markdown documents into YAML frontmatter and body.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// ErrInvalidFrontmatter is returned when the frontmatter block is not a YAML mapping.
var ErrInvalidFrontmatter = errors.New("invalid frontmatter")

// Result holds the output of parsing a Markdown file.
type Result struct {
	// Frontmatter is never nil; it is empty when the document has none.
	Frontmatter map[string]any
	Body        string
	// HasFrontmatter reports whether a delimited block was found.
	HasFrontmatter bool
}

// Parse separates YAML frontmatter (between leading --- lines) from the
// Markdown body. A document without an opening delimiter is all body.
func Parse(data []byte) (*Result, error) {
	text := strings.ReplaceAll(strings.TrimPrefix(string(data), "\ufeff"), "\r\n", "\n")
	trimmed := strings.TrimLeft(text, "\n")

	if !strings.HasPrefix(trimmed, delim) {
		return &Result{Frontmatter: map[string]any{}, Body: text}, nil
	}
	lines := strings.SplitAfter(trimmed, "\n")
	if strings.TrimSpace(lines[0]) != delim {
		return &Result{Frontmatter: map[string]any{}, Body: text}, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\n") == delim {
			end = i
			break
		}
	}
	if end < 0 {
		// No closing delimiter: treat everything as body.
		return &Result{Frontmatter: map[string]any{}, Body: text}, nil
	}

	block := strings.Join(lines[1:end], "")
	body := strings.Join(lines[end+1:], "")

	fm := map[string]any{}
	if strings.TrimSpace(block) != "" {
		var raw any
		if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
		switch v := raw.(type) {
		case map[string]any:
			fm = v
		case nil:
		default:
			return nil, fmt.Errorf("%w: not a mapping", ErrInvalidFrontmatter)
		}
	}

	return &Result{Frontmatter: fm, Body: body, HasFrontmatter: true}, nil
}

// Render produces a document with the given frontmatter and body.
func Render(frontmatter any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(frontmatter); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	buf.WriteString(delim + "\n\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}
