// Package seed fetches the JSON seed resource used to pre-populate an empty
// knowledge base.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultSource is the well-known seed location.
const DefaultSource = "data/knowledge_base.json"

// maxSeedBytes caps the body read from a seed resource.
const maxSeedBytes = 32 << 20

// ErrNotFound is returned when the seed resource does not exist.
var ErrNotFound = errors.New("seed: not found")

// Source yields the raw bytes of a seed resource.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// New returns an HTTP source for http(s) URLs and a file source otherwise.
// An empty location yields a source that always reports ErrNotFound.
func New(location string, timeout time.Duration) Source {
	switch {
	case location == "":
		return None{}
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return &HTTP{URL: location, Client: &http.Client{Timeout: timeout}}
	default:
		return File{Path: location}
	}
}

// HTTP fetches the seed with a GET request.
type HTTP struct {
	URL    string
	Client *http.Client
}

// Fetch performs the GET. A 404 maps to ErrNotFound.
func (h *HTTP) Fetch(ctx context.Context) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("seed: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seed: get %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("seed: get %s: unexpected status %d", h.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSeedBytes))
	if err != nil {
		return nil, fmt.Errorf("seed: read body: %w", err)
	}
	return body, nil
}

// File reads the seed from the local file system.
type File struct {
	Path string
}

// Fetch reads the file. A missing file maps to ErrNotFound.
func (f File) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("seed: read %s: %w", f.Path, err)
	}
	return data, nil
}

// None is a source with no seed.
type None struct{}

// Fetch always reports ErrNotFound.
func (None) Fetch(context.Context) ([]byte, error) { return nil, ErrNotFound }
