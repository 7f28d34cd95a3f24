package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/netip"
	"net/url"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/tome/internal/ai"
	"github.com/starford/tome/internal/importer"
	"github.com/starford/tome/internal/kbservice"
	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/store"
	"github.com/starford/tome/internal/testutil"
)

type fixedGen string

func (g fixedGen) Generate(context.Context, string) (string, error) { return string(g), nil }

func testServer(t *testing.T, client *ai.Client) (*Server, *kbservice.Service) {
	t.Helper()
	logger := testutil.Logger(t)
	st := store.New(testutil.NewMemStorage(), nil, store.WithLogger(logger))
	st.Bootstrap(context.Background())
	if client == nil {
		client = &ai.Client{}
	}
	svc := kbservice.NewService(st, importer.New(logger), client, logger)
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the
	// handler methods.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_items":
		result, err = srv.searchItems(ctx, req)
	case "read_item":
		result, err = srv.readItem(ctx, req)
	case "list_items":
		result, err = srv.listItems(ctx, req)
	case "create_item":
		result, err = srv.createItem(ctx, req)
	case "update_item":
		result, err = srv.updateItem(ctx, req)
	case "delete_item":
		result, err = srv.deleteItem(ctx, req)
	case "summarize_item":
		result, err = srv.summarizeItem(ctx, req)
	case "ask_knowledge_base":
		result, err = srv.askKnowledgeBase(ctx, req)
	case "import_from_url":
		result, err = srv.importFromURL(ctx, req)
	case "get_import_contract":
		result, err = srv.getImportContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadItem(t *testing.T) {
	srv, _ := testServer(t, nil)

	r := callTool(t, srv, "create_item", map[string]interface{}{
		"title":   "Test",
		"content": "Hello",
		"tags":    []interface{}{"a", " ", "b"},
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	var created models.KnowledgeItem
	if err := json.Unmarshal([]byte(resultText(r)), &created); err != nil {
		t.Fatalf("create result not JSON: %v", err)
	}
	if created.ID == "" || len(created.Tags) != 2 || created.Category != models.DefaultCategory {
		t.Errorf("created = %+v", created)
	}

	r = callTool(t, srv, "read_item", map[string]interface{}{"id": created.ID})
	if !strings.Contains(resultText(r), `"title": "Test"`) {
		t.Errorf("read result = %q", resultText(r))
	}
}

func TestCreateItem_MissingOrBlankText(t *testing.T) {
	srv, svc := testServer(t, nil)
	for _, args := range []map[string]interface{}{
		{"title": "x"},
		{"title": "T", "content": ""},
		{"title": "T", "content": " \n "},
		{"title": "  ", "content": "c"},
	} {
		if r := callTool(t, srv, "create_item", args); !r.IsError {
			t.Errorf("%v: expected error", args)
		}
	}
	if n := len(svc.List(context.Background(), store.Query{})); n != 0 {
		t.Errorf("blank items stored: %d", n)
	}
}

func TestReadItemMissing(t *testing.T) {
	srv, _ := testServer(t, nil)
	r := callTool(t, srv, "read_item", map[string]interface{}{"id": "nope"})
	if !r.IsError || resultText(r) != "not found: nope" {
		t.Errorf("missing item result = %q", resultText(r))
	}
}

func TestUpdateItem(t *testing.T) {
	srv, svc := testServer(t, nil)
	item := svc.Create(context.Background(), models.ItemInput{Title: "old", Content: "body", Category: "Dev"})

	r := callTool(t, srv, "update_item", map[string]interface{}{
		"id":    item.ID,
		"title": "new",
		"tags":  []interface{}{"x"},
	})
	if r.IsError {
		t.Fatalf("update failed: %s", resultText(r))
	}
	got, _ := svc.Get(context.Background(), item.ID)
	if got.Title != "new" || got.Content != "body" || got.Category != "Dev" || len(got.Tags) != 1 {
		t.Errorf("updated = %+v", got)
	}

	r = callTool(t, srv, "update_item", map[string]interface{}{"id": "ghost", "title": "x"})
	if !r.IsError {
		t.Error("expected error for unknown id")
	}
	for _, args := range []map[string]interface{}{
		{"id": item.ID, "title": "  "},
		{"id": item.ID, "content": ""},
		{"id": item.ID, "content": "\t"},
	} {
		if r := callTool(t, srv, "update_item", args); !r.IsError {
			t.Errorf("%v: expected error", args)
		}
	}
	got, _ = svc.Get(context.Background(), item.ID)
	if got.Content != "body" {
		t.Errorf("content changed to %q", got.Content)
	}

	r = callTool(t, srv, "update_item", map[string]interface{}{
		"id": item.ID, "category": "", "tags": []interface{}{"", " "},
	})
	if r.IsError {
		t.Fatalf("update failed: %s", resultText(r))
	}
	got, _ = svc.Get(context.Background(), item.ID)
	if got.Category != models.DefaultCategory || len(got.Tags) != 0 {
		t.Errorf("updated = %+v", got)
	}
}

func TestListSearchDelete(t *testing.T) {
	srv, svc := testServer(t, nil)
	ctx := context.Background()

	if text := resultText(callTool(t, srv, "list_items", map[string]interface{}{})); text != "no items" {
		t.Errorf("empty list = %q", text)
	}

	a := svc.Create(ctx, models.ItemInput{Title: "Alpha", Content: "first", Category: "Dev"})
	svc.Create(ctx, models.ItemInput{Title: "Beta", Content: "second", Tags: []string{"misc"}})

	text := resultText(callTool(t, srv, "list_items", map[string]interface{}{}))
	if strings.Count(text, "\n") != 1 || !strings.HasPrefix(text, a.ID+"\tAlpha") {
		t.Errorf("list = %q", text)
	}
	text = resultText(callTool(t, srv, "list_items", map[string]interface{}{"category": "dev"}))
	if text != a.ID+"\tAlpha" {
		t.Errorf("filtered list = %q", text)
	}

	r := callTool(t, srv, "search_items", map[string]interface{}{"query": "SECOND"})
	var hits []models.KnowledgeItem
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil || len(hits) != 1 || hits[0].Title != "Beta" {
		t.Errorf("search = %q (%v)", resultText(r), err)
	}

	if text := resultText(callTool(t, srv, "delete_item", map[string]interface{}{"id": a.ID})); text != "deleted: "+a.ID {
		t.Errorf("delete = %q", text)
	}
	r = callTool(t, srv, "delete_item", map[string]interface{}{"id": a.ID})
	if r.IsError {
		t.Error("deleting an unknown id should not be an error")
	}
}

func TestAITools(t *testing.T) {
	srv, svc := testServer(t, nil)
	item := svc.Create(context.Background(), models.ItemInput{Title: "A", Content: "a"})

	r := callTool(t, srv, "summarize_item", map[string]interface{}{"id": item.ID})
	if !r.IsError || !strings.Contains(resultText(r), "disabled") {
		t.Errorf("disabled summarize = %q", resultText(r))
	}

	srv, svc = testServer(t, ai.NewWithGenerator(fixedGen("the answer"), ""))
	item = svc.Create(context.Background(), models.ItemInput{Title: "A", Content: "a"})

	r = callTool(t, srv, "summarize_item", map[string]interface{}{"id": item.ID})
	if r.IsError || resultText(r) != "the answer" {
		t.Errorf("summarize = %q", resultText(r))
	}
	r = callTool(t, srv, "ask_knowledge_base", map[string]interface{}{"question": "what?"})
	if r.IsError || resultText(r) != "the answer" {
		t.Errorf("ask = %q", resultText(r))
	}
}

func TestImportFromDataURI(t *testing.T) {
	srv, svc := testServer(t, nil)
	payload := base64.StdEncoding.EncodeToString([]byte(`[{"title":"Imported","content":"c"}]`))

	r := callTool(t, srv, "import_from_url", map[string]interface{}{
		"url": "data:application/json;base64," + payload,
	})
	if r.IsError {
		t.Fatalf("import failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"count": 1`) {
		t.Errorf("import result = %q", resultText(r))
	}
	items := svc.List(context.Background(), store.Query{})
	if len(items) != 1 || items[0].Title != "Imported" {
		t.Errorf("items = %+v", items)
	}
}

func TestImportFromURL_Rejected(t *testing.T) {
	srv, _ := testServer(t, nil)
	for _, u := range []string{
		"http://127.0.0.1/kb.json",
		"http://[::1]:8080/kb.json",
		"ftp://example.com/kb.json",
		"data:application/json,notjson",
		"data:application/json;base64,!!!",
	} {
		r := callTool(t, srv, "import_from_url", map[string]interface{}{"url": u})
		if !r.IsError {
			t.Errorf("%s: expected error", u)
		}
	}
}

func TestImportFromPlainDataURI(t *testing.T) {
	srv, svc := testServer(t, nil)
	body := url.PathEscape("---\ntitle: Plain\n---\nbody")

	r := callTool(t, srv, "import_from_url", map[string]interface{}{
		"url":      "data:text/markdown," + body,
		"filename": "note.md",
	})
	if r.IsError {
		t.Fatalf("import failed: %s", resultText(r))
	}
	items := svc.List(context.Background(), store.Query{})
	if len(items) != 1 || items[0].Title != "Plain" || items[0].Content != "body" {
		t.Errorf("items = %+v", items)
	}
}

func TestInternalAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1":       true,
		"::1":             true,
		"10.1.2.3":        true,
		"192.168.0.10":    true,
		"169.254.169.254": true,
		"0.0.0.0":         true,
		"::ffff:10.0.0.1": true,
		"93.184.216.34":   false,
		"2606:4700::1111": false,
	} {
		if got := internalAddr(netip.MustParseAddr(addr)); got != want {
			t.Errorf("internalAddr(%s) = %v, want %v", addr, got, want)
		}
	}
	if err := refuseInternal("tcp", "10.0.0.1:443", nil); !errors.Is(err, errBlockedAddr) {
		t.Errorf("refuseInternal = %v", err)
	}
	if err := refuseInternal("tcp", "93.184.216.34:443", nil); err != nil {
		t.Errorf("refuseInternal public = %v", err)
	}
}

func TestExtForMediaType(t *testing.T) {
	for in, want := range map[string]string{
		"application/json; charset=utf-8": ".json",
		"text/markdown":                   ".md",
		"application/zip":                 ".zip",
		"text/html":                       "",
		"":                                "",
	} {
		if got := extForMediaType(in); got != want {
			t.Errorf("extForMediaType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilenameHelpers(t *testing.T) {
	if got := nameFromURL("https://example.com/exports/kb.json?x=1", ""); got != "kb.json" {
		t.Errorf("nameFromURL = %q", got)
	}
	if got := nameFromURL("data:application/zip;base64,AAAA", ".zip"); !strings.HasSuffix(got, ".zip") {
		t.Errorf("data URI name = %q", got)
	}
	if got := sanitizeFilename(`..\evil dir/n o.md`); got != "n_o.md" {
		t.Errorf("sanitizeFilename = %q", got)
	}
}

func TestImportContract(t *testing.T) {
	srv, _ := testServer(t, nil)
	text := resultText(callTool(t, srv, "get_import_contract", nil))
	if !strings.Contains(text, "title:") || !strings.Contains(text, "REPLACES") {
		t.Errorf("contract missing key sections")
	}

	contents, err := srv.readImportFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource: %v", err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != contractURI {
		t.Errorf("resource contents = %#v", contents[0])
	}
}
