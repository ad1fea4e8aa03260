package mcpserver

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/quill/internal/chatstore"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/storage"
)

func testServer(t *testing.T) (*Server, *notestore.Store, *chatstore.Store) {
	t.Helper()

	noteFiles, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	chatFiles, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	dbFile, err := os.CreateTemp("", "quill-mcp-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	notes := notestore.New(noteFiles, nil)
	chats := chatstore.New(chatFiles, notes, nil)
	srv := New(notes, chats, db)
	return srv, notes, chats
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "chat_history":
		result, err = srv.chatHistory(ctx, req)
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

func TestCreateAndReadNote(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Test",
		"content": "Hello from the tool",
	})
	text := resultText(r)
	if !strings.HasPrefix(text, "created: ") {
		t.Fatalf("create result = %q", text)
	}
	id := strings.TrimPrefix(text, "created: ")

	r = callTool(t, srv, "read_note", map[string]interface{}{"id": id})
	text = resultText(r)
	if !strings.HasPrefix(text, "Test\n\n") || !strings.Contains(text, "Hello from the tool") {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateNoteDefaultTitle(t *testing.T) {
	srv, notes, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{"content": "untitled body"})
	id := strings.TrimPrefix(resultText(r), "created: ")

	note, err := notes.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if note.Title != "Untitled Note" {
		t.Errorf("title = %q", note.Title)
	}
}

func TestListNotes(t *testing.T) {
	srv, _, _ := testServer(t)
	_ = callTool(t, srv, "create_note", map[string]interface{}{"title": "A", "content": "a"})
	_ = callTool(t, srv, "create_note", map[string]interface{}{"title": "B", "content": "b"})

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "A") || !strings.Contains(text, "B") {
		t.Errorf("list result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestChatHistory(t *testing.T) {
	srv, _, chats := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{"title": "Chat", "content": "x"})
	id := strings.TrimPrefix(resultText(r), "created: ")

	r = callTool(t, srv, "chat_history", map[string]interface{}{"id": id})
	if resultText(r) != "no chat history" {
		t.Errorf("empty history = %q", resultText(r))
	}

	_, _ = chats.Append(context.Background(), id, "user", "what is this?")
	_, _ = chats.Append(context.Background(), id, "assistant", "a note")

	r = callTool(t, srv, "chat_history", map[string]interface{}{"id": id})
	text := resultText(r)
	if !strings.Contains(text, "[user] what is this?") || !strings.Contains(text, "[assistant] a note") {
		t.Errorf("history = %q", text)
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Recipes",
		"content": "sourdough starter instructions",
	})
	id := strings.TrimPrefix(resultText(r), "created: ")

	// The watcher owns indexing in production; seed the row by hand here.
	if err := srv.db.UpsertNote(index.NoteRow{ID: id, Title: "Recipes", Checksum: "x"}, "sourdough starter instructions"); err != nil {
		t.Fatal(err)
	}

	r = callTool(t, srv, "search_notes", map[string]interface{}{"query": "sourdough"})
	if !strings.Contains(resultText(r), id) {
		t.Errorf("search result = %q", resultText(r))
	}
}
