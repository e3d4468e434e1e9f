// Package storage persists contact notes.
package storage

import (
	"context"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
)

// NoteStore is the persistence port for notes.
type NoteStore interface {
	// Insert writes a note once. Implementations must not partially write.
	Insert(ctx context.Context, n models.Note) error
	// List returns notes newest first with the total count.
	List(ctx context.Context, limit, offset int) ([]models.Note, int, error)
	// Close releases resources.
	Close() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
