package store_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/domain"
	"taskbot/internal/store"
)

type testEnv struct {
	Store   *store.Store
	Backend store.Backend
	Ctx     context.Context
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFileEnv(t *testing.T) testEnv {
	t.Helper()
	b, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return testEnv{Store: store.New(b, store.WithLogger(quietLogger())), Backend: b, Ctx: context.Background()}
}

func newSQLiteEnv(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()
	b, err := store.OpenSQLiteBackend(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return testEnv{Store: store.New(b, store.WithLogger(quietLogger())), Backend: b, Ctx: ctx}
}

var backends = map[string]func(t *testing.T) testEnv{
	"file":   newFileEnv,
	"sqlite": newSQLiteEnv,
}

func task(n int) domain.Task {
	return domain.Task{
		ID:        fmt.Sprintf("id-%d", n),
		Title:     fmt.Sprintf("task %d", n),
		Category:  "work",
		CreatedAt: "2025-01-01T00:00:00Z",
	}
}

func titles(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestLoadAllOnMissingStorageInitializesEmpty(t *testing.T) {
	for name, newEnv := range backends {
		t.Run(name, func(t *testing.T) {
			env := newEnv(t)
			tasks, err := env.Store.LoadAll(env.Ctx)
			require.NoError(t, err)
			assert.Empty(t, tasks)

			data, err := env.Backend.Read(env.Ctx)
			require.NoError(t, err)
			assert.JSONEq(t, `[]`, string(data))
		})
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	for name, newEnv := range backends {
		t.Run(name, func(t *testing.T) {
			env := newEnv(t)
			for i := 1; i <= 5; i++ {
				require.NoError(t, env.Store.Append(env.Ctx, task(i)))
			}
			tasks, err := env.Store.LoadAll(env.Ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"task 1", "task 2", "task 3", "task 4", "task 5"}, titles(tasks))
		})
	}
}

func TestAppendRejectsMissingRequiredFields(t *testing.T) {
	env := newFileEnv(t)
	err := env.Store.Append(env.Ctx, domain.Task{ID: "x", Category: "work"})
	assert.ErrorIs(t, err, store.ErrInvalidTask)
	err = env.Store.Append(env.Ctx, domain.Task{ID: "x", Title: "t"})
	assert.ErrorIs(t, err, store.ErrInvalidTask)

	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDeleteAt(t *testing.T) {
	for name, newEnv := range backends {
		t.Run(name, func(t *testing.T) {
			env := newEnv(t)
			for i := 1; i <= 3; i++ {
				require.NoError(t, env.Store.Append(env.Ctx, task(i)))
			}

			for _, p := range []int{-1, 0, 4, 100} {
				_, err := env.Store.DeleteAt(env.Ctx, p)
				assert.ErrorIs(t, err, store.ErrNotFound, "position %d", p)
			}
			tasks, err := env.Store.LoadAll(env.Ctx)
			require.NoError(t, err)
			require.Len(t, tasks, 3)

			removed, err := env.Store.DeleteAt(env.Ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, "task 2", removed.Title)

			tasks, err = env.Store.LoadAll(env.Ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"task 1", "task 3"}, titles(tasks))
		})
	}
}

func TestDeleteByID(t *testing.T) {
	env := newFileEnv(t)
	for i := 1; i <= 3; i++ {
		require.NoError(t, env.Store.Append(env.Ctx, task(i)))
	}
	_, err := env.Store.DeleteByID(env.Ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = env.Store.DeleteByID(env.Ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	removed, err := env.Store.DeleteByID(env.Ctx, "id-3")
	require.NoError(t, err)
	assert.Equal(t, "task 3", removed.Title)

	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"task 1", "task 2"}, titles(tasks))
}

func TestSaveAllRoundTripIsIdempotent(t *testing.T) {
	for name, newEnv := range backends {
		t.Run(name, func(t *testing.T) {
			env := newEnv(t)
			require.NoError(t, env.Store.Append(env.Ctx, task(1)))
			withDue := task(2)
			withDue.DueDate = "2025-06-01T20:00:00"
			withDue.ReminderTime = "2025-05-31T20:00:00"
			withDue.Description = "fetch <milk> & eggs"
			require.NoError(t, env.Store.Append(env.Ctx, withDue))

			before, err := env.Backend.Read(env.Ctx)
			require.NoError(t, err)
			tasks, err := env.Store.LoadAll(env.Ctx)
			require.NoError(t, err)
			require.NoError(t, env.Store.SaveAll(env.Ctx, tasks))
			after, err := env.Backend.Read(env.Ctx)
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after))

			again, err := env.Store.LoadAll(env.Ctx)
			require.NoError(t, err)
			assert.Equal(t, tasks, again)
		})
	}
}

func TestCorruptDataSelfHeals(t *testing.T) {
	for name, newEnv := range backends {
		t.Run(name, func(t *testing.T) {
			env := newEnv(t)
			require.NoError(t, env.Backend.Write(env.Ctx, []byte(`{"not": "a list"`)))

			tasks, err := env.Store.LoadAll(env.Ctx)
			assert.ErrorIs(t, err, store.ErrCorruptData)
			assert.Empty(t, tasks)

			tasks, err = env.Store.LoadAll(env.Ctx)
			require.NoError(t, err)
			assert.Empty(t, tasks)

			require.NoError(t, env.Store.Append(env.Ctx, task(1)))
			tasks, err = env.Store.LoadAll(env.Ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"task 1"}, titles(tasks))
		})
	}
}

func TestMutationOnCorruptDataIsNotApplied(t *testing.T) {
	env := newFileEnv(t)
	require.NoError(t, env.Backend.Write(env.Ctx, []byte(`[1, 2, 3]`)))

	err := env.Store.Append(env.Ctx, task(1))
	assert.ErrorIs(t, err, store.ErrCorruptData)

	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestEmptyFileIsEmptyCollection(t *testing.T) {
	env := newFileEnv(t)
	require.NoError(t, env.Backend.Write(env.Ctx, nil))
	tasks, err := env.Store.LoadAll(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestLegacyRecordsAreUpgraded(t *testing.T) {
	env := newFileEnv(t)
	ids := 0
	s := store.New(env.Backend, store.WithLogger(quietLogger()), store.WithIDFunc(func() string {
		ids++
		return fmt.Sprintf("gen-%d", ids)
	}))
	legacy := `[
  {"task": "water plants"},
  {"title": "report", "category": "work", "due_date": "2025-06-01T20:00:00"},
  {"id": "keep", "title": "call mom", "category": "family"}
]`
	require.NoError(t, env.Backend.Write(env.Ctx, []byte(legacy)))

	tasks, err := s.LoadAll(env.Ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, domain.Task{ID: "gen-1", Title: "water plants", Category: store.LegacyCategory}, tasks[0])
	assert.Equal(t, "gen-2", tasks[1].ID)
	assert.Equal(t, "2025-06-01T20:00:00", tasks[1].DueDate)
	assert.Equal(t, "keep", tasks[2].ID)

	again, err := s.LoadAll(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, tasks, again)

	_, err = s.DeleteAt(env.Ctx, 3)
	require.NoError(t, err)
	data, err := env.Backend.Read(env.Ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"task"`)
	assert.Contains(t, string(data), `"gen-1"`)
}

func TestRecordWithoutTitleIsCorrupt(t *testing.T) {
	env := newFileEnv(t)
	require.NoError(t, env.Backend.Write(env.Ctx, []byte(`[{"category": "work"}]`)))
	_, err := env.Store.LoadAll(env.Ctx)
	assert.ErrorIs(t, err, store.ErrCorruptData)
}

func TestEnsure(t *testing.T) {
	env := newFileEnv(t)
	res, err := env.Store.Ensure(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, store.EnsureCreated, res)

	res, err = env.Store.Ensure(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, store.EnsureValid, res)

	require.NoError(t, env.Backend.Write(env.Ctx, []byte(`garbage`)))
	res, err = env.Store.Ensure(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, store.EnsureReinitialized, res)
}

func TestFileBackendLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := store.NewFileBackend(dir)
	require.NoError(t, err)
	s := store.New(b, store.WithLogger(quietLogger()))
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Append(context.Background(), task(i)))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.FileName, entries[0].Name())
	assert.Equal(t, filepath.Join(dir, store.FileName), s.Location())
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	for name, newEnv := range backends {
		t.Run(name, func(t *testing.T) {
			env := newEnv(t)
			const n = 20
			var wg sync.WaitGroup
			for i := 1; i <= n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, env.Store.Append(env.Ctx, task(i)))
				}(i)
			}
			wg.Wait()
			tasks, err := env.Store.LoadAll(env.Ctx)
			require.NoError(t, err)
			assert.Len(t, tasks, n)
		})
	}
}

type failingBackend struct {
	readErr  error
	writeErr error
	data     []byte
	writes   int
}

func (b *failingBackend) Read(context.Context) ([]byte, error) {
	if b.readErr != nil {
		return nil, b.readErr
	}
	if b.data == nil {
		return nil, fs.ErrNotExist
	}
	return b.data, nil
}

func (b *failingBackend) Write(_ context.Context, data []byte) error {
	b.writes++
	if b.writeErr != nil {
		return b.writeErr
	}
	b.data = append([]byte(nil), data...)
	return nil
}

func (b *failingBackend) Location() string { return "memory" }
func (b *failingBackend) Close() error     { return nil }

func TestIOFailuresAreReported(t *testing.T) {
	ctx := context.Background()

	readFail := &failingBackend{readErr: errors.New("permission denied")}
	s := store.New(readFail, store.WithLogger(quietLogger()))
	_, err := s.LoadAll(ctx)
	assert.ErrorIs(t, err, store.ErrIO)
	assert.Zero(t, readFail.writes, "unreadable storage must not be overwritten")

	writeFail := &failingBackend{data: []byte(`[]`), writeErr: errors.New("disk full")}
	s = store.New(writeFail, store.WithLogger(quietLogger()))
	err = s.Append(ctx, task(1))
	assert.ErrorIs(t, err, store.ErrIO)
	assert.JSONEq(t, `[]`, string(writeFail.data))
}
