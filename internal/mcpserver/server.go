// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the portfolio assistant over stdio, so desktop LLM clients can ask
// about the site owner or leave a note.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/apperr"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/chat"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/noteservice"
)

const (
	biographyURI = "portfolio://biography"
	promptURI    = "portfolio://assistant-prompt"

	// noteOrigin is recorded as the client address of notes left over MCP.
	noteOrigin = "mcp"
)

// Server wraps the MCP server with the portfolio tools.
type Server struct {
	mcp   *server.MCPServer
	relay *chat.Relay
	notes *noteservice.Service
}

// New creates a new MCP server with all tools and resources registered.
func New(relay *chat.Relay, notes *noteservice.Service, version string) *Server {
	s := &Server{relay: relay, notes: notes}

	s.mcp = server.NewMCPServer(
		"Portfolio Assistant",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("ask_portfolio",
		mcp.WithDescription("Ask the portfolio assistant a question about "+chat.DefaultPersona+
			". Answers are grounded in the published biography only."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to ask")),
	), s.askPortfolio)

	s.mcp.AddTool(mcp.NewTool("leave_note",
		mcp.WithDescription("Leave a note for the site owner. Name, email and message are required."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Sender name")),
		mcp.WithString("email", mcp.Required(), mcp.Description("Sender email address")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message body")),
		mcp.WithString("contact_info", mcp.Description("Optional extra contact details")),
	), s.leaveNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List received notes, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Number of notes to skip")),
	), s.listNotes)

	s.mcp.AddResource(
		mcp.NewResource(biographyURI, "Biography",
			mcp.WithResourceDescription("The context document the assistant answers from."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBiography,
	)
	s.mcp.AddResource(
		mcp.NewResource(promptURI, "Assistant Prompt",
			mcp.WithResourceDescription("Instructions sent with every question."),
			mcp.WithMIMEType("text/plain"),
		),
		s.readPrompt,
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

func (s *Server) askPortfolio(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.relay.Answer(ctx, question)
	switch {
	case err == nil:
		return mcp.NewToolResultText(answer), nil
	case errors.Is(err, apperr.ErrBadRequest):
		return mcp.NewToolResultError(chat.MsgBadMessage), nil
	case errors.Is(err, apperr.ErrConfiguration):
		return mcp.NewToolResultError(chat.MsgNoCredential), nil
	default:
		return mcp.NewToolResultError(chat.ErrorMessage(apperr.Classify(err))), nil
	}
}

func (s *Server) leaveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sub := models.Submission{
		Name:        req.GetString("name", ""),
		Email:       req.GetString("email", ""),
		Message:     req.GetString("message", ""),
		ContactInfo: req.GetString("contact_info", ""),
	}
	note, err := s.notes.Submit(ctx, sub, noteOrigin)
	switch {
	case err == nil:
		return mcp.NewToolResultText(fmt.Sprintf("note submitted: %s", note.ID)), nil
	case errors.Is(err, apperr.ErrBadRequest):
		return mcp.NewToolResultError("name, email, and message are required"), nil
	case errors.Is(err, apperr.ErrConfiguration):
		return mcp.NewToolResultError("note storage is not configured"), nil
	case errors.Is(err, apperr.ErrUnreachable):
		return mcp.NewToolResultError("note storage is temporarily unreachable"), nil
	default:
		return mcp.NewToolResultError("failed to save note"), nil
	}
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	offset := req.GetInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	notes, total, err := s.notes.List(ctx, limit, offset)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if notes == nil {
		notes = []models.Note{}
	}
	out, _ := json.MarshalIndent(map[string]any{"notes": notes, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readBiography(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      biographyURI,
			MIMEType: "text/markdown",
			Text:     s.relay.Biography(),
		},
	}, nil
}

func (s *Server) readPrompt(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      promptURI,
			MIMEType: "text/plain",
			Text:     s.relay.System(),
		},
	}, nil
}
