package api

import (
	"encoding/json"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
)

// ChatRequest is the request body of POST /api/chat. Message is kept raw so
// that non-string values can be rejected explicitly.
type ChatRequest struct {
	Message json.RawMessage `json:"message" swaggertype:"string" example:"What does Anmol work on?" validate:"required"`
	Stream  *bool           `json:"stream,omitempty" example:"true"`
}

// message returns the message when it is a JSON string.
func (c ChatRequest) message() (string, bool) {
	if len(c.Message) == 0 || c.Message[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(c.Message, &s); err != nil {
		return "", false
	}
	return s, true
}

// ChatResponse is the non-streaming reply.
type ChatResponse struct {
	Response string `json:"response" validate:"required"`
}

// NoteRequest is the request body of POST /api/leave-note.
type NoteRequest = models.Submission

// NoteResponse acknowledges a stored note.
type NoteResponse struct {
	Success bool   `json:"success" example:"true" validate:"required"`
	Message string `json:"message" example:"Note submitted successfully" validate:"required"`
	NoteID  string `json:"noteId" example:"0192f0c4-7a8e-7b4c-9d1e-3f2a1b0c9d8e" validate:"required"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string `json:"status" example:"OK" validate:"required"`
	Timestamp string `json:"timestamp" example:"2026-01-02T15:04:05Z" validate:"required"`
	Service   string `json:"service" example:"Anmol Portfolio API" validate:"required"`
}

// RateLimitResponse is returned with status 429.
type RateLimitResponse struct {
	Error      string `json:"error" validate:"required"`
	RetryAfter int    `json:"retryAfter" example:"300" validate:"required"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}
