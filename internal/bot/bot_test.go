package bot_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/bot"
	"taskbot/internal/dialogue"
	"taskbot/internal/store"
)

type testEnv struct {
	Bot   *bot.Bot
	Store *store.Store
	Dir   string
	Ctx   context.Context
}

func newTestEnv(t *testing.T, reminder bool) testEnv {
	t.Helper()
	dir := t.TempDir()
	b, err := store.NewFileBackend(dir)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(b, store.WithLogger(logger))
	tb := bot.New(st, bot.Options{Reminder: reminder, Precision: dialogue.PrecisionSecond, Logger: logger})
	ids := 0
	newID := func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	now := func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	tb.NewID, tb.Now = newID, now
	tb.Dialogue.NewID, tb.Dialogue.Now = newID, now
	return testEnv{Bot: tb, Store: st, Dir: dir, Ctx: context.Background()}
}

func (env testEnv) send(conv string, texts ...string) bot.Reply {
	var r bot.Reply
	for _, text := range texts {
		r = env.Bot.Handle(env.Ctx, bot.Event{ConversationID: conv, Text: text})
	}
	return r
}

func TestStartAndHelp(t *testing.T) {
	env := newTestEnv(t, true)
	r := env.send("c", "/start")
	assert.Contains(t, r.Text, "/add")
	assert.Contains(t, r.Text, "/delete")
	assert.Equal(t, r.Text, env.send("c", "/help@taskbot").Text)
}

func TestCommandsForOtherBotsAreIgnored(t *testing.T) {
	env := newTestEnv(t, false)
	env.Bot.Username = "TaskBot"

	assert.Empty(t, env.send("c", "/start@someotherbot").Text)
	assert.Contains(t, env.send("c", "/help@taskbot").Text, "/add")
	assert.Contains(t, env.send("c", "/help").Text, "/add")

	env.send("c", "/add", "Buy milk")
	r := env.send("c", "/cancel@someotherbot")
	assert.Empty(t, r.Text)
	assert.Equal(t, dialogue.StateDescription, r.State)

	r = env.send("c", "", "errand", "")
	assert.Equal(t, dialogue.StateEnd, r.State)
	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestAddThenList(t *testing.T) {
	env := newTestEnv(t, false)
	r := env.send("c", "/add")
	assert.Equal(t, dialogue.StateTitle, r.State)
	assert.Contains(t, r.Text, "title")

	r = env.send("c", "Buy milk", "", "errand", "")
	assert.Equal(t, dialogue.StateEnd, r.State)
	assert.Equal(t, "✅ Task 'Buy milk' added!", r.Text)

	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, "", tasks[0].Description)
	assert.Equal(t, "errand", tasks[0].Category)
	assert.False(t, tasks[0].HasDueDate())

	r = env.send("c", "/list")
	assert.Equal(t, "📝 Your tasks:\n1. Buy milk (ID: id-1)\n   Category: errand\n   Due: unspecified", r.Text)
}

func TestListFormatsDueDate(t *testing.T) {
	env := newTestEnv(t, true)
	env.send("c", "/add", "Report", "q2", "work", "2025-06-01 20:00", "")
	r := env.send("c", "/list")
	assert.Contains(t, r.Text, "1. Report (ID: id-1)")
	assert.Contains(t, r.Text, "Due: 2025-06-01 20:00")
}

func TestEmptyList(t *testing.T) {
	env := newTestEnv(t, true)
	assert.Equal(t, "📭 Your task list is empty.", env.send("c", "/list").Text)
}

func TestCancelMidDialogueCommitsNothing(t *testing.T) {
	env := newTestEnv(t, true)
	env.send("c", "/add", "Buy milk")
	r := env.send("c", "/cancel")
	assert.Equal(t, "Adding the task was cancelled.", r.Text)

	r = env.send("c", "errand")
	assert.Contains(t, r.Text, "/add")

	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.Equal(t, "There is nothing to cancel.", env.send("c", "/cancel").Text)
}

func TestValidationKeepsState(t *testing.T) {
	env := newTestEnv(t, true)
	env.send("c", "/add")
	r := env.send("c", "")
	assert.Equal(t, dialogue.StateTitle, r.State)
	assert.Contains(t, r.Text, "cannot be empty")

	r = env.send("c", "Title", "", "")
	assert.Equal(t, dialogue.StateCategory, r.State)

	r = env.send("c", "home", "not-a-date")
	assert.Equal(t, dialogue.StateDueDate, r.State)
	assert.Contains(t, r.Text, "Invalid due date")

	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestOtherCommandsKeepSession(t *testing.T) {
	env := newTestEnv(t, false)
	env.send("c", "/add", "Title")
	r := env.send("c", "/list")
	assert.Equal(t, dialogue.StateDescription, r.State)

	r = env.send("c", "desc", "cat", "")
	assert.Equal(t, dialogue.StateEnd, r.State)
	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "desc", tasks[0].Description)
}

func TestDeleteByPositionAndID(t *testing.T) {
	env := newTestEnv(t, false)
	for _, title := range []string{"one", "two", "three"} {
		env.send("c", "/add", title, "", "cat", "")
	}
	assert.Equal(t, "🗑 Deleted: two", env.send("c", "/delete 2").Text)
	assert.Equal(t, "🗑 Deleted: three", env.send("c", "/delete id-3").Text)
	assert.Equal(t, "❗️ There is no task number 5.", env.send("c", "/delete 5").Text)
	assert.Equal(t, "❗️ There is no task number 0.", env.send("c", "/delete 0").Text)
	assert.Equal(t, "❗️ No task with ID nope was found.", env.send("c", "/delete nope").Text)
	assert.Contains(t, env.send("c", "/delete").Text, "/delete 2")

	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "one", tasks[0].Title)
}

func TestCorruptStorageIsReported(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(env.Dir, store.FileName), []byte("{{{"), 0o644))

	assert.Equal(t, "⚠️ The task storage was damaged and has been reset. Please retry your last action.", env.send("c", "/list").Text)
	assert.Equal(t, "📭 Your task list is empty.", env.send("c", "/list").Text)
}

func TestCommitAfterCorruptionRetriesOnce(t *testing.T) {
	env := newTestEnv(t, false)
	env.send("c", "/add", "Title", "", "cat")
	require.NoError(t, os.WriteFile(filepath.Join(env.Dir, store.FileName), []byte("oops"), 0o644))

	r := env.send("c", "")
	assert.Contains(t, r.Text, "has been reset")
	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Title", tasks[0].Title)
}

func TestUnknownCommandAndPlainText(t *testing.T) {
	env := newTestEnv(t, false)
	assert.Equal(t, "Unknown command /frobnicate. Send /help to see what I can do.", env.send("c", "/frobnicate").Text)
	assert.Equal(t, "Send /add to create a task or /list to see your tasks.", env.send("c", "hello").Text)
}

func TestAddTaskValidates(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.Bot.AddTask(env.Ctx, bot.NewTask{Title: " ", Category: "x"})
	var verr *dialogue.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)

	_, err = env.Bot.AddTask(env.Ctx, bot.NewTask{Title: "t", Category: "x", DueDate: "soon"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "due_date", verr.Field)

	task, err := env.Bot.AddTask(env.Ctx, bot.NewTask{Title: "t", Category: "x", DueDate: "2025-06-01"})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01T00:00:00", task.DueDate)
	assert.Equal(t, "2025-05-01T12:00:00Z", task.CreatedAt)
}
