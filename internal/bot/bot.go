package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskbot/internal/dialogue"
	"taskbot/internal/domain"
	"taskbot/internal/store"
)

// TaskStore is the part of store.Store the bot uses.
type TaskStore interface {
	LoadAll(ctx context.Context) ([]domain.Task, error)
	Append(ctx context.Context, t domain.Task) error
	DeleteAt(ctx context.Context, position int) (domain.Task, error)
	DeleteByID(ctx context.Context, id string) (domain.Task, error)
}

// Event is one user input from a front end.
type Event struct {
	ConversationID string
	Text           string
}

// Reply is the text to send back.
type Reply struct {
	Text  string
	State dialogue.State
}

// Bot dispatches commands to the task store and plain text to the
// conversation's add-task dialogue.
type Bot struct {
	Store     TaskStore
	Dialogue  *dialogue.Dialogue
	Precision dialogue.Precision
	Log       *slog.Logger
	Now       func() time.Time
	NewID     func() string
	// Username, when set, makes "/cmd@other" commands addressed to a
	// different bot be ignored.
	Username string
}

type Options struct {
	Reminder  bool
	Precision dialogue.Precision
	Logger    *slog.Logger
}

func New(st TaskStore, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bot{
		Store: st,
		Dialogue: dialogue.New(st, dialogue.Options{
			Reminder:  opts.Reminder,
			Precision: opts.Precision,
			Logger:    opts.Logger,
		}),
		Precision: opts.Precision,
		Log:       opts.Logger,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// Handle processes one event and returns the reply text.
func (b *Bot) Handle(ctx context.Context, ev Event) Reply {
	if name, target, args, ok := parseCommand(ev.Text); ok {
		if target != "" && b.Username != "" && !strings.EqualFold(target, b.Username) {
			b.Log.Debug("ignoring command for another bot", "conversation", ev.ConversationID, "target", target)
			state, _ := b.Dialogue.Active(ev.ConversationID)
			return Reply{State: state}
		}
		b.Log.Debug("command", "conversation", ev.ConversationID, "command", name)
		return b.command(ctx, ev.ConversationID, name, args)
	}
	res, ok := b.Dialogue.Handle(ctx, ev.ConversationID, ev.Text)
	if !ok {
		return Reply{Text: msgHint}
	}
	return Reply{Text: renderPrompt(res), State: res.State}
}

func (b *Bot) command(ctx context.Context, conversationID, name string, args []string) Reply {
	state, _ := b.Dialogue.Active(conversationID)
	switch name {
	case "start", "help":
		return Reply{Text: msgHelp, State: state}
	case "add":
		res := b.Dialogue.Start(conversationID)
		return Reply{Text: renderPrompt(res), State: res.State}
	case "cancel":
		res, existed := b.Dialogue.Cancel(conversationID)
		if !existed {
			return Reply{Text: msgNothingCancel}
		}
		return Reply{Text: renderPrompt(res), State: res.State}
	case "list":
		return Reply{Text: b.list(ctx), State: state}
	case "delete":
		return Reply{Text: b.delete(ctx, args), State: state}
	default:
		return Reply{Text: fmt.Sprintf(msgUnknown, "/"+name), State: state}
	}
}

func (b *Bot) list(ctx context.Context) string {
	tasks, err := b.Store.LoadAll(ctx)
	if err != nil {
		return storeErrorText(err)
	}
	return RenderList(tasks)
}

func (b *Bot) delete(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return msgDeleteUsage
	}
	removed, err := b.DeleteRef(ctx, args[0])
	var pe PositionError
	switch {
	case err == nil:
		return fmt.Sprintf(msgDeleted, removed.Title)
	case errors.As(err, &pe):
		return fmt.Sprintf(msgNoPosition, pe.Position)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf(msgNoID, args[0])
	default:
		return storeErrorText(err)
	}
}

// PositionError reports a delete by position that matched nothing.
type PositionError struct {
	Position int
}

func (e PositionError) Error() string {
	return fmt.Sprintf("no task at position %d", e.Position)
}

func (e PositionError) Unwrap() error { return store.ErrNotFound }

// DeleteRef deletes by 1-based position when ref is an integer and by id
// otherwise.
func (b *Bot) DeleteRef(ctx context.Context, ref string) (domain.Task, error) {
	ref = strings.TrimSpace(ref)
	if pos, err := strconv.Atoi(ref); err == nil {
		t, err := b.Store.DeleteAt(ctx, pos)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Task{}, PositionError{Position: pos}
		}
		return t, err
	}
	return b.Store.DeleteByID(ctx, ref)
}

// NewTask carries the fields of a task created outside the dialogue.
type NewTask struct {
	Title        string
	Description  string
	Category     string
	DueDate      string
	ReminderTime string
}

// AddTask validates and appends a task in one call, applying the same field
// rules as the dialogue.
func (b *Bot) AddTask(ctx context.Context, in NewTask) (domain.Task, error) {
	t := domain.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
	}
	if t.Title == "" {
		return domain.Task{}, &dialogue.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if t.Category == "" {
		return domain.Task{}, &dialogue.ValidationError{Field: "category", Reason: "must not be empty"}
	}
	var err error
	if t.DueDate, err = b.optionalDate("due_date", in.DueDate); err != nil {
		return domain.Task{}, err
	}
	if t.ReminderTime, err = b.optionalDate("reminder_time", in.ReminderTime); err != nil {
		return domain.Task{}, err
	}
	t.ID = b.NewID()
	t.CreatedAt = b.Now().UTC().Format(time.RFC3339)
	if err := b.Store.Append(ctx, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (b *Bot) optionalDate(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	parsed, err := dialogue.ParseDateTime(value)
	if err != nil {
		return "", &dialogue.ValidationError{Field: field, Reason: err.Error()}
	}
	return dialogue.FormatCanonical(parsed, b.Precision), nil
}

// parseCommand splits "/name@bot arg1 arg2" into its name, the addressed
// bot (empty when absent) and the arguments.
func parseCommand(text string) (name, target string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", nil, false
	}
	fields := strings.Fields(text)
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		name, target = name[:at], name[at+1:]
	}
	if name == "" {
		return "", "", nil, false
	}
	return strings.ToLower(name), target, fields[1:], true
}

func storeErrorText(err error) string {
	if errors.Is(err, store.ErrCorruptData) {
		return msgStoreReset
	}
	return msgStoreFailed
}
