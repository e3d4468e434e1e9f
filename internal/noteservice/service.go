// Package noteservice accepts contact notes, persists them and fans out
// best-effort copies.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/apperr"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/metrics"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/storage"
)

// ErrSaveFailed wraps every persistence failure.
var ErrSaveFailed = errors.New("failed to save note")

// SideTask is a secondary effect run after a note was saved. Its failure is
// logged and never reaches the submitter.
type SideTask interface {
	Name() string
	Run(ctx context.Context, n models.Note) error
}

// Service coordinates validation, persistence and side tasks.
type Service struct {
	store       storage.NoteStore
	tasks       []SideTask
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	newID       func() (string, error)
	taskTimeout time.Duration

	wg sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithSideTasks appends side tasks run after every successful save.
func WithSideTasks(tasks ...SideTask) Option {
	return func(s *Service) { s.tasks = append(s.tasks, tasks...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides note id generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.newID = fn }
}

// WithTaskTimeout bounds each side task run.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.taskTimeout = d
		}
	}
}

// NewService creates a Service. A nil store means persistence is not
// configured and every submission fails with apperr.ErrConfiguration.
func NewService(store storage.NoteStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       newTimeOrderedID,
		taskTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newTimeOrderedID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Configured reports whether a note store is available.
func (s *Service) Configured() bool {
	return s.store != nil
}

// Validate checks that name, email and message are present.
func Validate(sub models.Submission) error {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.Message = strings.TrimSpace(sub.Message)
	return validation.ValidateStruct(&sub,
		validation.Field(&sub.Name, validation.Required),
		validation.Field(&sub.Email, validation.Required),
		validation.Field(&sub.Message, validation.Required),
	)
}

// Submit validates and stores a submission from ip, then starts side tasks.
func (s *Service) Submit(ctx context.Context, sub models.Submission, ip string) (*models.Note, error) {
	if err := Validate(sub); err != nil {
		s.metrics.Note("invalid")
		return nil, fmt.Errorf("%w: %v", apperr.ErrBadRequest, err)
	}
	if s.store == nil {
		s.metrics.Note("unconfigured")
		return nil, apperr.Configuration("note store")
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("noteservice: generate id: %w", err)
	}
	if ip == "" {
		ip = "unknown"
	}
	note := models.Note{
		ID:          id,
		Name:        strings.TrimSpace(sub.Name),
		Email:       strings.TrimSpace(sub.Email),
		Message:     sub.Message,
		ContactInfo: strings.TrimSpace(sub.ContactInfo),
		IPAddress:   ip,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.store.Insert(ctx, note); err != nil {
		s.logger.Error("note save failed", slog.String("id", note.ID), slog.String("error", err.Error()))
		if apperr.IsUnreachable(err) {
			s.metrics.Note("unreachable")
			return nil, fmt.Errorf("%w: %w: %w", ErrSaveFailed, apperr.ErrUnreachable, err)
		}
		s.metrics.Note("error")
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	s.metrics.Note("ok")
	s.logger.Info("note received",
		slog.String("id", note.ID),
		slog.String("name", note.Name),
		slog.String("email", note.Email),
		slog.String("ip", note.IPAddress))

	s.runSideTasks(ctx, note)
	return &note, nil
}

// List returns stored notes newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Note, int, error) {
	if s.store == nil {
		return nil, 0, apperr.Configuration("note store")
	}
	return s.store.List(ctx, limit, offset)
}

// Wait blocks until every started side task finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) runSideTasks(ctx context.Context, note models.Note) {
	base := context.WithoutCancel(ctx)
	for _, task := range s.tasks {
		s.wg.Add(1)
		go func(task SideTask) {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic: %v", r)
					s.metrics.SideTask(task.Name(), err)
					s.logger.Error("side task panicked", slog.String("task", task.Name()), slog.String("id", note.ID), slog.Any("panic", r))
				}
			}()

			taskCtx, cancel := context.WithTimeout(base, s.taskTimeout)
			defer cancel()

			err := task.Run(taskCtx, note)
			s.metrics.SideTask(task.Name(), err)
			if err != nil {
				s.logger.Warn("side task failed",
					slog.String("task", task.Name()),
					slog.String("id", note.ID),
					slog.String("error", err.Error()))
				return
			}
			s.logger.Debug("side task done", slog.String("task", task.Name()), slog.String("id", note.ID))
		}(task)
	}
}
