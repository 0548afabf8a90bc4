package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"taskbot/internal/db"
	"taskbot/internal/migrate"
)

// SQLiteBackend keeps the serialized collection in the single row of the
// task_collection table.
type SQLiteBackend struct {
	DB   *sql.DB
	path string
	Now  func() time.Time
}

// OpenSQLiteBackend opens <dataDir>/taskbot.db and applies migrations.
func OpenSQLiteBackend(ctx context.Context, dataDir string) (*SQLiteBackend, error) {
	conn, err := db.Open(db.Config{DataDir: dataDir})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteBackend{DB: conn, path: db.Path(dataDir), Now: time.Now}, nil
}

func (b *SQLiteBackend) Location() string { return b.path }

func (b *SQLiteBackend) Read(ctx context.Context) ([]byte, error) {
	var body string
	err := b.DB.QueryRowContext(ctx, `SELECT body FROM task_collection WHERE id=1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fs.ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (b *SQLiteBackend) Write(ctx context.Context, data []byte) error {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO task_collection(id,body,updated_at) VALUES (1,?,?)
		ON CONFLICT(id) DO UPDATE SET body=excluded.body, updated_at=excluded.updated_at`,
		string(data), now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Close() error { return b.DB.Close() }
