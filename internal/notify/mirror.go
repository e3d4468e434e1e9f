package notify

import (
	"context"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
)

// Inserter is satisfied by every storage.NoteStore.
type Inserter interface {
	Insert(ctx context.Context, n models.Note) error
}

// Mirror copies each note into a secondary store, such as a Google Sheet.
type Mirror struct {
	name  string
	store Inserter
}

// NewMirror creates a Mirror task.
func NewMirror(name string, store Inserter) *Mirror {
	return &Mirror{name: name, store: store}
}

// Name identifies the task in logs and metrics.
func (m *Mirror) Name() string { return m.name }

// Run writes the note to the secondary store.
func (m *Mirror) Run(ctx context.Context, n models.Note) error {
	return m.store.Insert(ctx, n)
}

// Announce publishes a lightweight summary of each note.
type Announce struct {
	publish func(models.Note)
}

// NewAnnounce creates an Announce task from a publish function.
func NewAnnounce(publish func(models.Note)) *Announce {
	return &Announce{publish: publish}
}

// Name identifies the task in logs and metrics.
func (a *Announce) Name() string { return "announce" }

// Run publishes the note summary.
func (a *Announce) Run(_ context.Context, n models.Note) error {
	a.publish(n)
	return nil
}
