package storage

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
)

// SheetHeader is the header row written by InitHeader.
var SheetHeader = []any{"ID", "Timestamp", "Name", "Email", "Message", "Contact Info", "IP Address"}

// Sheets appends notes as rows of a Google Sheet. Row layout follows
// SheetHeader over columns A:G.
type Sheets struct {
	svc     *sheets.Service
	sheetID string
	limiter *rate.Limiter
}

// NewSheets creates a Sheets store. rps throttles API calls; values <= 0
// mean one call per second.
func NewSheets(ctx context.Context, sheetID string, rps float64, opts ...option.ClientOption) (*Sheets, error) {
	if sheetID == "" {
		return nil, fmt.Errorf("storage: sheet id is empty")
	}
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: sheets service: %w", err)
	}
	if rps <= 0 {
		rps = 1
	}
	return &Sheets{
		svc:     svc,
		sheetID: sheetID,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// InitHeader writes and formats the header row.
func (s *Sheets) InitHeader(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.svc.Spreadsheets.Values.Update(s.sheetID, "A1:G1", &sheets.ValueRange{
		Values: [][]any{SheetHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("storage: write sheet header: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.sheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(SheetHeader)),
					ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: &sheets.Color{Red: 0.2, Green: 0.6, Blue: 0.9},
						TextFormat: &sheets.TextFormat{
							Bold:            true,
							ForegroundColor: &sheets.Color{Red: 1, Green: 1, Blue: 1},
						},
					},
				},
				Fields: "userEnteredFormat(backgroundColor,textFormat)",
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("storage: format sheet header: %w", err)
	}
	return nil
}

// Insert implements NoteStore.
func (s *Sheets) Insert(ctx context.Context, n models.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	row := []any{n.ID, n.CreatedAt.Format(time.RFC3339), n.Name, n.Email, n.Message, n.ContactInfo, n.IPAddress}
	_, err := s.svc.Spreadsheets.Values.Append(s.sheetID, "A:G", &sheets.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("storage: append sheet row: %w", err)
	}
	return nil
}

// List implements NoteStore. Rows are returned newest first.
func (s *Sheets) List(ctx context.Context, limit, offset int) ([]models.Note, int, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.sheetID, "A2:G").Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("storage: read sheet: %w", err)
	}

	all := make([]models.Note, 0, len(resp.Values))
	for i := len(resp.Values) - 1; i >= 0; i-- {
		all = append(all, rowToNote(resp.Values[i]))
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// Close implements NoteStore.
func (s *Sheets) Close() error { return nil }

func rowToNote(row []any) models.Note {
	cell := func(i int) string {
		if i < len(row) {
			if v, ok := row[i].(string); ok {
				return v
			}
			return fmt.Sprint(row[i])
		}
		return ""
	}
	n := models.Note{
		ID:          cell(0),
		Name:        cell(2),
		Email:       cell(3),
		Message:     cell(4),
		ContactInfo: cell(5),
		IPAddress:   cell(6),
	}
	if t, err := time.Parse(time.RFC3339, cell(1)); err == nil {
		n.CreatedAt = t
	}
	return n
}
