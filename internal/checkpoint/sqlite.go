package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kelsos/design-survey/internal/checkpoint/migrations"
	"github.com/kelsos/design-survey/internal/logger"
)

// SQLiteStore keeps completed task IDs in a SQLite table. Saves replace every row inside one
// transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	logger.Debug("SQLite checkpoint store initialized at %s", path)
	return &SQLiteStore{db: db}, nil
}

// Load returns every completed task ID.
func (s *SQLiteStore) Load(ctx context.Context) (Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, done FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("could not query checkpoints: %w", err)
	}
	defer rows.Close()

	cp := Checkpoint{}
	for rows.Next() {
		var (
			id   string
			done bool
		)
		if err := rows.Scan(&id, &done); err != nil {
			return nil, fmt.Errorf("could not scan checkpoint: %w", err)
		}
		cp[id] = done
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate checkpoints: %w", err)
	}

	return cp, nil
}

// Save replaces the stored mapping with cp.
func (s *SQLiteStore) Save(ctx context.Context, cp Checkpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints`); err != nil {
		return fmt.Errorf("could not clear checkpoints: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO checkpoints (task_id, done, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("could not prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for id, done := range cp {
		if _, err := stmt.ExecContext(ctx, id, done, now); err != nil {
			return fmt.Errorf("could not insert checkpoint %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }
