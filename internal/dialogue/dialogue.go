package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskbot/internal/domain"
	"taskbot/internal/store"
)

// State is the field a session is waiting for.
type State int

const (
	StateEnd State = iota
	StateTitle
	StateDescription
	StateCategory
	StateDueDate
	StateReminder
)

func (s State) String() string {
	switch s {
	case StateTitle:
		return "collect_title"
	case StateDescription:
		return "collect_description"
	case StateCategory:
		return "collect_category"
	case StateDueDate:
		return "collect_due_date"
	case StateReminder:
		return "collect_reminder"
	default:
		return "end"
	}
}

// Prompt identifies the message the front end should send next.
type Prompt string

const (
	PromptTitle           Prompt = "ask_title"
	PromptTitleEmpty      Prompt = "title_empty"
	PromptDescription     Prompt = "ask_description"
	PromptCategory        Prompt = "ask_category"
	PromptCategoryEmpty   Prompt = "category_empty"
	PromptDueDate         Prompt = "ask_due_date"
	PromptDueDateInvalid  Prompt = "due_date_invalid"
	PromptReminder        Prompt = "ask_reminder"
	PromptReminderInvalid Prompt = "reminder_invalid"
	PromptSaved           Prompt = "saved"
	PromptSavedAfterReset Prompt = "saved_after_reset"
	PromptSaveFailed      Prompt = "save_failed"
	PromptCancelled       Prompt = "cancelled"
)

// Outcome summarizes what a step did.
type Outcome int

const (
	OutcomeAdvanced Outcome = iota
	OutcomeRejected
	OutcomeCommitted
	OutcomeFailed
	OutcomeCancelled
)

// SkipInput may be sent instead of an empty message for optional fields.
const SkipInput = "-"

// ValidationError reports input that keeps the session in its state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Result is the effect of one input on a session.
type Result struct {
	State   State
	Outcome Outcome
	Prompt  Prompt
	Task    domain.Task
	Err     error
}

// Appender persists a completed task.
type Appender interface {
	Append(ctx context.Context, t domain.Task) error
}

// Options configure the field sequence.
type Options struct {
	Reminder  bool
	Precision Precision
	Logger    *slog.Logger
}

type session struct {
	state State
	draft domain.Task
}

// Dialogue owns one add-task session per conversation. Steps for all
// conversations are serialized.
type Dialogue struct {
	store     Appender
	reminder  bool
	precision Precision
	log       *slog.Logger
	Now       func() time.Time
	NewID     func() string

	mu       sync.Mutex
	sessions map[string]*session
}

func New(a Appender, opts Options) *Dialogue {
	if opts.Precision == "" {
		opts.Precision = PrecisionSecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dialogue{
		store:     a,
		reminder:  opts.Reminder,
		precision: opts.Precision,
		log:       opts.Logger,
		Now:       time.Now,
		NewID:     uuid.NewString,
		sessions:  map[string]*session{},
	}
}

// Start opens a fresh session, discarding any session the conversation had.
func (d *Dialogue) Start(conversationID string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[conversationID]; ok {
		d.log.Debug("discarding previous add session", "conversation", conversationID)
	}
	d.sessions[conversationID] = &session{state: StateTitle}
	return Result{State: StateTitle, Outcome: OutcomeAdvanced, Prompt: PromptTitle}
}

// Active returns the state of the conversation's session.
func (d *Dialogue) Active(conversationID string) (State, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[conversationID]
	if !ok {
		return StateEnd, false
	}
	return s.state, true
}

// Cancel drops the conversation's session. It reports whether one existed.
func (d *Dialogue) Cancel(conversationID string) (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sessions[conversationID]
	delete(d.sessions, conversationID)
	return Result{State: StateEnd, Outcome: OutcomeCancelled, Prompt: PromptCancelled}, ok
}

// Handle feeds one input to the conversation's session. It returns false
// when the conversation has no session.
func (d *Dialogue) Handle(ctx context.Context, conversationID, input string) (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[conversationID]
	if !ok {
		return Result{State: StateEnd}, false
	}
	res := d.step(ctx, s, input)
	if res.State == StateEnd {
		delete(d.sessions, conversationID)
	}
	d.log.Debug("dialogue step", "conversation", conversationID, "state", res.State, "prompt", res.Prompt)
	return res, true
}

func (d *Dialogue) step(ctx context.Context, s *session, input string) Result {
	text := strings.TrimSpace(input)
	switch s.state {
	case StateTitle:
		if text == "" {
			return d.reject(s, PromptTitleEmpty, "title", "must not be empty")
		}
		s.draft.Title = text
		return d.advance(s, StateDescription, PromptDescription)
	case StateDescription:
		if text == SkipInput {
			text = ""
		}
		s.draft.Description = text
		return d.advance(s, StateCategory, PromptCategory)
	case StateCategory:
		if text == "" {
			return d.reject(s, PromptCategoryEmpty, "category", "must not be empty")
		}
		s.draft.Category = text
		return d.advance(s, StateDueDate, PromptDueDate)
	case StateDueDate:
		value, ok := d.parseOptional(text)
		if !ok {
			return d.reject(s, PromptDueDateInvalid, "due_date", ErrInvalidDate.Error())
		}
		s.draft.DueDate = value
		if d.reminder {
			return d.advance(s, StateReminder, PromptReminder)
		}
		return d.commit(ctx, s)
	case StateReminder:
		value, ok := d.parseOptional(text)
		if !ok {
			return d.reject(s, PromptReminderInvalid, "reminder_time", ErrInvalidDate.Error())
		}
		s.draft.ReminderTime = value
		return d.commit(ctx, s)
	default:
		return Result{State: StateEnd, Outcome: OutcomeFailed, Prompt: PromptSaveFailed, Err: errors.New("session already ended")}
	}
}

func (d *Dialogue) parseOptional(text string) (string, bool) {
	if text == "" || text == SkipInput {
		return "", true
	}
	t, err := ParseDateTime(text)
	if err != nil {
		return "", false
	}
	return FormatCanonical(t, d.precision), true
}

func (d *Dialogue) advance(s *session, next State, p Prompt) Result {
	s.state = next
	return Result{State: next, Outcome: OutcomeAdvanced, Prompt: p}
}

func (d *Dialogue) reject(s *session, p Prompt, field, reason string) Result {
	return Result{State: s.state, Outcome: OutcomeRejected, Prompt: p, Err: &ValidationError{Field: field, Reason: reason}}
}

// commit persists the draft. When the store reports that corrupt content
// was discarded the append is tried once more against the fresh collection.
func (d *Dialogue) commit(ctx context.Context, s *session) Result {
	t := s.draft
	t.ID = d.NewID()
	t.CreatedAt = d.Now().UTC().Format(time.RFC3339)
	s.state = StateEnd

	err := d.store.Append(ctx, t)
	prompt := PromptSaved
	if errors.Is(err, store.ErrCorruptData) {
		d.log.Warn("task storage was reset during commit; retrying once", "task", t.ID)
		prompt = PromptSavedAfterReset
		err = d.store.Append(ctx, t)
	}
	if err != nil {
		d.log.Error("saving task failed", "task", t.ID, "error", err)
		return Result{State: StateEnd, Outcome: OutcomeFailed, Prompt: PromptSaveFailed, Err: err}
	}
	return Result{State: StateEnd, Outcome: OutcomeCommitted, Prompt: prompt, Task: t}
}
