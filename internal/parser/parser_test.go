package parser

import (
	"errors"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - tome\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.HasFrontmatter {
		t.Fatal("frontmatter not detected")
	}
	if r.Frontmatter["title"] != "Hello" {
		t.Errorf("title = %v", r.Frontmatter["title"])
	}
	tags, ok := r.Frontmatter["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Errorf("tags = %#v", r.Frontmatter["tags"])
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.HasFrontmatter || len(r.Frontmatter) != 0 {
		t.Errorf("expected empty frontmatter, got %v", r.Frontmatter)
	}
}

func TestParse_CRLF(t *testing.T) {
	r, err := Parse([]byte("---\r\ntitle: T\r\n---\r\nHello\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter["title"] != "T" || r.Body != "Hello\n" {
		t.Errorf("result = %+v", r)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if !errors.Is(err, ErrInvalidFrontmatter) {
		t.Errorf("err = %v, want ErrInvalidFrontmatter", err)
	}
}

func TestParse_NonMappingFrontmatter(t *testing.T) {
	_, err := Parse([]byte("---\n- a\n- b\n---\nBody\n"))
	if !errors.Is(err, ErrInvalidFrontmatter) {
		t.Errorf("err = %v, want ErrInvalidFrontmatter", err)
	}
}

func TestParse_UnclosedDelimiter(t *testing.T) {
	r, err := Parse([]byte("---\ntitle: T\nno end"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.HasFrontmatter {
		t.Error("unclosed block must not count as frontmatter")
	}
}

func TestRender_RoundTrip(t *testing.T) {
	doc, err := Render(map[string]any{"title": "T", "tags": []string{"a"}}, "Body")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	r, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Frontmatter["title"] != "T" || r.Body != "\nBody\n" {
		t.Errorf("round trip = %+v", r)
	}
}
