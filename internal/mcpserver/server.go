// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Tome tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tome/internal/apperr"
	"github.com/starford/tome/internal/kbservice"
	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/store"
)

const contractURI = "tome://import-format"

// Server wraps the MCP server with Tome tools.
type Server struct {
	mcp  *server.MCPServer
	svc  *kbservice.Service
	http *http.Client
}

// New creates a new MCP server with all Tome tools registered.
func New(svc *kbservice.Service, version string) *Server {
	s := &Server{svc: svc, http: newFetchClient()}

	s.mcp = server.NewMCPServer(
		"Tome",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Case-insensitive search across item titles, content, categories, summaries and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithString("category", mcp.Description("Optional category filter")),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("read_item",
		mcp.WithDescription("Read one knowledge item as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item ID")),
	), s.readItem)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List items as 'id<TAB>title' lines, optionally filtered by category."),
		mcp.WithString("category", mcp.Description("Optional category filter")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create a knowledge item. Returns the stored item with its generated id."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
		mcp.WithString("category", mcp.Description("Category (defaults to Uncategorized)")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags")),
	), s.createItem)

	s.mcp.AddTool(mcp.NewTool("update_item",
		mcp.WithDescription("Change fields of an existing item. Omitted fields are kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item ID")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New content")),
		mcp.WithString("category", mcp.Description("New category")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Replacement tag list")),
	), s.updateItem)

	s.mcp.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Delete an item. Deleting an unknown id is not an error."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item ID")),
	), s.deleteItem)

	s.mcp.AddTool(mcp.NewTool("summarize_item",
		mcp.WithDescription("Generate an AI summary for an item and store it on the item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item ID")),
	), s.summarizeItem)

	s.mcp.AddTool(mcp.NewTool("ask_knowledge_base",
		mcp.WithDescription("Answer a question using every item in the knowledge base as context."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question")),
	), s.askKnowledgeBase)

	s.mcp.AddTool(mcp.NewTool("import_from_url",
		mcp.WithDescription("Import a JSON, Markdown or ZIP file from an http(s) URL or a base64 data URI. "+
			"REPLACES the whole knowledge base. Read the contract first via get_import_contract."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
		mcp.WithString("filename", mcp.Description("Optional file name used for format detection")),
	), s.importFromURL)

	s.mcp.AddTool(mcp.NewTool("get_import_contract",
		mcp.WithDescription("Returns the accepted import formats. "+
			"Call this before importing or authoring Markdown items."),
	), s.getImportContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Import Format Contract",
			mcp.WithResourceDescription("Markdown frontmatter and JSON shapes accepted by the importer."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readImportFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error, id string) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

type textArg struct {
	name  string
	value *string
}

// blankField names the first supplied argument that is empty or only
// whitespace. Nil values are skipped.
func blankField(args ...textArg) string {
	for _, a := range args {
		if a.value != nil && strings.TrimSpace(*a.value) == "" {
			return a.name + " must not be empty"
		}
	}
	return ""
}

// optionalString returns the argument and whether it was supplied.
func optionalString(req mcp.CallToolRequest, key string) (*string, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("argument %q must be a string", key)
	}
	return &s, nil
}

func optionalTags(req mcp.CallToolRequest) (*[]string, error) {
	raw, ok := req.GetArguments()["tags"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("argument \"tags\" must be an array of strings")
	}
	tags := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("argument \"tags\" must be an array of strings")
		}
		if strings.TrimSpace(s) != "" {
			tags = append(tags, s)
		}
	}
	return &tags, nil
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items := s.svc.List(ctx, store.Query{
		Text:     query,
		Category: req.GetString("category", ""),
		Tag:      req.GetString("tag", ""),
	})
	return jsonResult(items)
}

func (s *Server) readItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.Get(ctx, id)
	if err != nil {
		return errorResult(err, id), nil
	}
	return jsonResult(item)
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.svc.List(ctx, store.Query{Category: req.GetString("category", "")})
	if len(items) == 0 {
		return mcp.NewToolResultText("no items"), nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.ID + "\t" + it.Title
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) createItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if msg := blankField(textArg{"title", &title}, textArg{"content", &content}); msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	tags, err := optionalTags(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := models.ItemInput{Title: title, Content: content, Category: req.GetString("category", "")}
	if tags != nil {
		in.Tags = *tags
	}
	return jsonResult(s.svc.Create(ctx, in))
}

func (s *Server) updateItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patch := models.ItemPatch{ID: id}
	for key, dst := range map[string]**string{
		"title":    &patch.Title,
		"content":  &patch.Content,
		"category": &patch.Category,
	} {
		v, err := optionalString(req, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		*dst = v
	}
	if msg := blankField(textArg{"title", patch.Title}, textArg{"content", patch.Content}); msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	if patch.Tags, err = optionalTags(req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.Update(ctx, patch)
	if err != nil {
		return errorResult(err, id), nil
	}
	return jsonResult(item)
}

func (s *Server) deleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.svc.Delete(ctx, id) {
		return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("no such item: %s", id)), nil
}

func (s *Server) summarizeItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.Summarize(ctx, id)
	if err != nil {
		return errorResult(err, id), nil
	}
	return mcp.NewToolResultText(item.Summary), nil
}

func (s *Server) askKnowledgeBase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.svc.Ask(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (s *Server) getImportContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ImportFormatContract), nil
}

func (s *Server) readImportFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ImportFormatContract,
		},
	}, nil
}
