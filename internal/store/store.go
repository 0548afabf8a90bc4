package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"taskbot/internal/domain"
)

var (
	// ErrNotFound is returned when a delete target does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrCorruptData is returned when stored content could not be decoded.
	// The store has already been reset to an empty collection when it is seen.
	ErrCorruptData = errors.New("stored task data was corrupt and has been reset")
	// ErrIO wraps unexpected storage failures.
	ErrIO = errors.New("task storage failure")
	// ErrInvalidTask is returned for records without a title or category.
	ErrInvalidTask = errors.New("invalid task")
)

// Backend reads and replaces the serialized task collection. Read returns an
// error matching fs.ErrNotExist when nothing has been stored yet. Write must
// replace the collection in one step so readers never see partial content.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Location() string
	Close() error
}

// EnsureResult describes what Ensure found in storage.
type EnsureResult string

const (
	EnsureCreated       EnsureResult = "created"
	EnsureValid         EnsureResult = "valid"
	EnsureReinitialized EnsureResult = "reinitialized"
)

// Store is the shared task list. All mutations run read-modify-write under
// one mutex.
type Store struct {
	mu      sync.Mutex
	backend Backend
	log     *slog.Logger
	newID   func() string
}

type Option func(*Store)

// WithLogger sets the logger used for self-heal and failure reports.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithIDFunc overrides id generation for records loaded without an id.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func New(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		log:     slog.Default(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns where the backend keeps the collection.
func (s *Store) Location() string { return s.backend.Location() }

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

// Ensure makes sure storage holds a valid collection, creating or
// re-initializing it when needed.
func (s *Store) Ensure(ctx context.Context) (EnsureResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.backend.Read(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.resetLocked(ctx); err != nil {
			return "", err
		}
		return EnsureCreated, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrIO, s.backend.Location(), err)
	}
	if isBlank(data) {
		if err := s.resetLocked(ctx); err != nil {
			return "", err
		}
		return EnsureCreated, nil
	}
	if _, _, err := decodeCollection(data, s.newID); err != nil {
		s.log.Warn("task storage is not a valid collection; re-initializing", "location", s.backend.Location(), "error", err)
		if err := s.resetLocked(ctx); err != nil {
			return "", err
		}
		return EnsureReinitialized, nil
	}
	return EnsureValid, nil
}

// LoadAll returns every task in insertion order. Absent storage is created
// empty. Corrupt storage is reset and reported with ErrCorruptData next to
// an empty result.
func (s *Store) LoadAll(ctx context.Context) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// SaveAll replaces the whole collection.
func (s *Store) SaveAll(ctx context.Context, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, tasks)
}

// Append adds one task at the end of the list.
func (s *Store) Append(ctx context.Context, t domain.Task) error {
	if err := validate(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	return s.saveLocked(ctx, append(tasks, t))
}

// DeleteAt removes the task at the 1-based position of LoadAll order.
func (s *Store) DeleteAt(ctx context.Context, position int) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, err := s.loadLocked(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	if position < 1 || position > len(tasks) {
		return domain.Task{}, ErrNotFound
	}
	removed := tasks[position-1]
	rest := make([]domain.Task, 0, len(tasks)-1)
	rest = append(rest, tasks[:position-1]...)
	rest = append(rest, tasks[position:]...)
	if err := s.saveLocked(ctx, rest); err != nil {
		return domain.Task{}, err
	}
	return removed, nil
}

// DeleteByID removes the task with the given id.
func (s *Store) DeleteByID(ctx context.Context, id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, err := s.loadLocked(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	idx := -1
	for i, t := range tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if id == "" || idx < 0 {
		return domain.Task{}, ErrNotFound
	}
	removed := tasks[idx]
	rest := make([]domain.Task, 0, len(tasks)-1)
	rest = append(rest, tasks[:idx]...)
	rest = append(rest, tasks[idx+1:]...)
	if err := s.saveLocked(ctx, rest); err != nil {
		return domain.Task{}, err
	}
	return removed, nil
}

func (s *Store) loadLocked(ctx context.Context) ([]domain.Task, error) {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info("task storage missing; initializing empty collection", "location", s.backend.Location())
		if err := s.resetLocked(ctx); err != nil {
			return nil, err
		}
		return []domain.Task{}, nil
	}
	if err != nil {
		s.log.Error("reading task storage failed", "location", s.backend.Location(), "error", err)
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, s.backend.Location(), err)
	}
	if isBlank(data) {
		return []domain.Task{}, nil
	}
	tasks, upgraded, err := decodeCollection(data, s.newID)
	if err != nil {
		s.log.Warn("task storage is corrupt; discarding content", "location", s.backend.Location(), "error", err)
		if rerr := s.resetLocked(ctx); rerr != nil {
			return nil, rerr
		}
		return []domain.Task{}, ErrCorruptData
	}
	if upgraded > 0 {
		// Generated ids must survive until the next load.
		if err := s.saveLocked(ctx, tasks); err != nil {
			return nil, err
		}
		s.log.Info("upgraded legacy task records", "count", upgraded)
	}
	return tasks, nil
}

func (s *Store) saveLocked(ctx context.Context, tasks []domain.Task) error {
	for _, t := range tasks {
		if err := validate(t); err != nil {
			return err
		}
	}
	data, err := encodeCollection(tasks)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrIO, err)
	}
	if err := s.backend.Write(ctx, data); err != nil {
		s.log.Error("writing task storage failed", "location", s.backend.Location(), "error", err)
		return fmt.Errorf("%w: write %s: %v", ErrIO, s.backend.Location(), err)
	}
	return nil
}

func (s *Store) resetLocked(ctx context.Context) error {
	if err := s.backend.Write(ctx, []byte("[]\n")); err != nil {
		s.log.Error("initializing task storage failed", "location", s.backend.Location(), "error", err)
		return fmt.Errorf("%w: initialize %s: %v", ErrIO, s.backend.Location(), err)
	}
	return nil
}

func validate(t domain.Task) error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if t.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidTask)
	}
	return nil
}
