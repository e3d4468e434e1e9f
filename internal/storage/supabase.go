package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
)

// Supabase writes notes through the PostgREST endpoint of a Supabase project.
type Supabase struct {
	baseURL    string
	serviceKey string
	table      string
	client     *http.Client
}

// SupabaseError is a non-2xx reply from PostgREST.
type SupabaseError struct {
	Status  int
	Code    string
	Message string
}

func (e *SupabaseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Message)
}

// StatusCode implements apperr.StatusCoder.
func (e *SupabaseError) StatusCode() int { return e.Status }

// NewSupabase creates a store for table in the project at projectURL.
func NewSupabase(projectURL, serviceKey, table string, client *http.Client) *Supabase {
	if table == "" {
		table = "notes"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Supabase{
		baseURL:    strings.TrimRight(projectURL, "/"),
		serviceKey: serviceKey,
		table:      table,
		client:     client,
	}
}

type supabaseRow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Message     string    `json:"message"`
	ContactInfo string    `json:"contact_info"`
	IPAddress   string    `json:"ip_address"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Supabase) endpoint() string {
	return s.baseURL + "/rest/v1/" + url.PathEscape(s.table)
}

func (s *Supabase) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Insert implements NoteStore.
func (s *Supabase) Insert(ctx context.Context, n models.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal([]supabaseRow{{
		ID:          n.ID,
		Name:        n.Name,
		Email:       n.Email,
		Message:     n.Message,
		ContactInfo: n.ContactInfo,
		IPAddress:   n.IPAddress,
		CreatedAt:   n.CreatedAt,
	}})
	if err != nil {
		return fmt.Errorf("storage: encode note: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("storage: build insert: %w", err)
	}
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage: supabase insert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("storage: supabase insert: %w", decodeSupabaseError(resp))
	}
	return nil
}

// List implements NoteStore.
func (s *Supabase) List(ctx context.Context, limit, offset int) ([]models.Note, int, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	req, err := s.newRequest(ctx, http.MethodGet, s.endpoint()+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: build list: %w", err)
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: supabase list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, 0, fmt.Errorf("storage: supabase list: %w", decodeSupabaseError(resp))
	}

	var rows []supabaseRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, 0, fmt.Errorf("storage: decode list: %w", err)
	}
	out := make([]models.Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Note(r))
	}

	total := len(out) + offset
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if i := strings.LastIndexByte(cr, '/'); i >= 0 {
			if n, convErr := strconv.Atoi(cr[i+1:]); convErr == nil {
				total = n
			}
		}
	}
	return out, total, nil
}

// Close implements NoteStore.
func (s *Supabase) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func decodeSupabaseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	e := &SupabaseError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		e.Code = body.Code
		e.Message = body.Message
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
