package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/chat"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/completion"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/noteservice"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/testutil"
)

func testServer(t *testing.T, provider completion.Provider) (*Server, *testutil.MemStore) {
	t.Helper()
	logger := testutil.QuietLogger()
	store := testutil.NewMemStore()
	relay := chat.NewRelay(provider, chat.StaticContext("# Anmol\nBuilds web apps."), chat.WithLogger(logger))
	notes := noteservice.NewService(store, noteservice.WithLogger(logger))
	return New(relay, notes, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the
	// handler functions.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "ask_portfolio":
		result, err = srv.askPortfolio(ctx, req)
	case "leave_note":
		result, err = srv.leaveNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
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

func TestAskPortfolio(t *testing.T) {
	p := &testutil.Scripted{Chunks: []string{"He builds ", "web apps."}}
	srv, _ := testServer(t, p)

	r := callTool(t, srv, "ask_portfolio", map[string]interface{}{"question": "What does he do?"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if got := resultText(r); got != "He builds web apps." {
		t.Errorf("answer = %q", got)
	}
	if !strings.Contains(p.LastRequest().User, "Builds web apps.") {
		t.Error("biography missing from user turn")
	}
}

func TestAskPortfolioErrors(t *testing.T) {
	srv, _ := testServer(t, &testutil.Scripted{})
	if r := callTool(t, srv, "ask_portfolio", map[string]interface{}{}); !r.IsError {
		t.Error("expected error for missing question")
	}

	srv, _ = testServer(t, nil)
	r := callTool(t, srv, "ask_portfolio", map[string]interface{}{"question": "hi"})
	if !r.IsError || resultText(r) != chat.MsgNoCredential {
		t.Errorf("unconfigured result = %q", resultText(r))
	}

	srv, _ = testServer(t, &testutil.Scripted{Err: &completion.APIError{Provider: "openai", Status: 429}})
	r = callTool(t, srv, "ask_portfolio", map[string]interface{}{"question": "hi"})
	if !r.IsError || resultText(r) != chat.MsgRateLimit {
		t.Errorf("rate limited result = %q", resultText(r))
	}
}

func TestLeaveNoteAndList(t *testing.T) {
	srv, store := testServer(t, &testutil.Scripted{})

	r := callTool(t, srv, "leave_note", map[string]interface{}{
		"name":    "Ada",
		"email":   "ada@example.com",
		"message": "Hello",
	})
	if r.IsError || !strings.HasPrefix(resultText(r), "note submitted: ") {
		t.Fatalf("leave_note = %q", resultText(r))
	}
	notes := store.Notes()
	if len(notes) != 1 || notes[0].IPAddress != "mcp" {
		t.Fatalf("stored = %+v", notes)
	}

	r = callTool(t, srv, "list_notes", map[string]interface{}{"limit": 5})
	var out struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 1 {
		t.Errorf("total = %d", out.Total)
	}
}

func TestLeaveNoteErrors(t *testing.T) {
	srv, store := testServer(t, &testutil.Scripted{})
	r := callTool(t, srv, "leave_note", map[string]interface{}{"name": "Ada"})
	if !r.IsError {
		t.Error("expected validation error")
	}

	store.Fail(errors.New("disk full"))
	r = callTool(t, srv, "leave_note", map[string]interface{}{
		"name": "Ada", "email": "a@b.c", "message": "m",
	})
	if !r.IsError || resultText(r) != "failed to save note" {
		t.Errorf("save failure = %q", resultText(r))
	}
}

func TestResources(t *testing.T) {
	srv, _ := testServer(t, &testutil.Scripted{})

	contents, err := srv.readBiography(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	bio, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.HasPrefix(bio.Text, "# Anmol") {
		t.Errorf("biography = %+v", contents[0])
	}

	contents, err = srv.readPrompt(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	prompt, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(prompt.Text, "FORMATTING GUIDELINES:") {
		t.Errorf("prompt = %+v", contents[0])
	}
}
