// Package ai wraps the generative-text API used for summaries and
// question answering. Without a credential the client stays disabled and
// never touches the network.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/starford/tome/internal/apperr"
	"github.com/starford/tome/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds the credential and model name.
type Config struct {
	APIKey string
	Model  string
}

// Client issues summarize and answer calls. The zero value is disabled.
type Client struct {
	gen   Generator
	model string
}

// New builds a client. When cfg.APIKey is empty the key is taken from
// API_KEY, then GEMINI_API_KEY; if both are unset the client is disabled.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	key := ResolveKey(cfg.APIKey)
	if key == "" {
		return &Client{model: cfg.Model}, nil
	}
	gen, err := newGenAI(ctx, key, cfg.Model)
	if err != nil {
		return nil, err
	}
	return &Client{gen: gen, model: cfg.Model}, nil
}

// NewWithGenerator builds an enabled client around gen. Used by tests and
// alternative backends.
func NewWithGenerator(gen Generator, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{gen: gen, model: model}
}

// ResolveKey returns key or the first non-empty credential from the environment.
func ResolveKey(key string) string {
	if k := strings.TrimSpace(key); k != "" {
		return k
	}
	for _, env := range []string{"API_KEY", "GEMINI_API_KEY"} {
		if k := strings.TrimSpace(os.Getenv(env)); k != "" {
			return k
		}
	}
	return ""
}

// Enabled reports whether a credential was available.
func (c *Client) Enabled() bool { return c != nil && c.gen != nil }

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil || c.model == "" {
		return DefaultModel
	}
	return c.model
}

// Summarize returns a concise summary of text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize the following text concisely for a knowledge base entry. " +
		"Focus on the key information and make it easy to understand quickly:\n\n---\n" +
		text + "\n---\n\nSummary:"
	return c.generate(ctx, "summarize", prompt)
}

// Answer answers question using only contextText.
func (c *Client) Answer(ctx context.Context, contextText, question string) (string, error) {
	prompt := "Based on the following context, answer the question. " +
		"If the context doesn't provide enough information, say so.\n\nContext:\n" +
		contextText + "\n\nQuestion: " + question + "\n\nAnswer:"
	return c.generate(ctx, "answer", prompt)
}

func (c *Client) generate(ctx context.Context, op, prompt string) (string, error) {
	if !c.Enabled() {
		return "", apperr.ErrAIDisabled
	}
	out, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("ai: %s: %w", op, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("ai: %s: %w", op, apperr.ErrEmptyResponse)
	}
	return out, nil
}

// BuildContext renders items as the context block for Answer.
func BuildContext(items []models.KnowledgeItem) string {
	blocks := make([]string, 0, len(items))
	for _, item := range items {
		var b strings.Builder
		fmt.Fprintf(&b, "Item ID: %s\nTitle: %s\nCategory: %s\nTags: %s\n",
			item.ID, item.Title, item.Category, strings.Join(item.Tags, ", "))
		if item.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", item.Summary)
		}
		b.WriteString("Content: " + item.Content)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// genAI is the Gemini API backed Generator.
type genAI struct {
	client *genai.Client
	model  string
}

func newGenAI(ctx context.Context, key, model string) (*genAI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create client: %w", err)
	}
	return &genAI{client: client, model: model}, nil
}

func (g *genAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
