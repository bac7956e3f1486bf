package tasks

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = errors.New("task not found")

// Store persists the task list in a sqlite database.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("task store: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("task store: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("task store: %s: %w", pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		emoji TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		priority REAL NOT NULL DEFAULT 0,
		desire REAL NOT NULL DEFAULT 0,
		difficulty REAL NOT NULL DEFAULT 0,
		percent REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("task store: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// List returns all tasks sorted by descending score, annotated with score
// and display color relative to the current list.
func (s *Store) List(ctx context.Context) ([]ScoredTask, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ScoredTask, 0, len(all))
	minScore, maxScore := 0.0, 0.0
	for i, t := range all {
		sc := t.Score()
		if i == 0 || sc < minScore {
			minScore = sc
		}
		if i == 0 || sc > maxScore {
			maxScore = sc
		}
		out = append(out, ScoredTask{Task: t, Score: sc})
	}
	for i := range out {
		out[i].Color = ScoreColor(out[i].Score, minScore, maxScore)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Export returns all tasks in insertion order, unscored, for file export.
func (s *Store) Export(ctx context.Context) ([]Task, error) {
	return s.all(ctx)
}

func (s *Store) all(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, emoji, text, priority, desire, difficulty, percent FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Emoji, &t.Text, &t.Priority, &t.Desire, &t.Difficulty, &t.Percent); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create inserts a task, generating an id when absent, and returns the
// normalized stored task.
func (s *Store) Create(ctx context.Context, t Task) (Task, error) {
	t.Normalize()
	if t.ID == "" {
		id, err := newID()
		if err != nil {
			return Task{}, err
		}
		t.ID = id
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, emoji, text, priority, desire, difficulty, percent) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Emoji, t.Text, t.Priority, t.Desire, t.Difficulty, t.Percent)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// Update replaces an existing task's fields.
func (s *Store) Update(ctx context.Context, t Task) (Task, error) {
	t.Normalize()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET emoji = ?, text = ?, priority = ?, desire = ?, difficulty = ?, percent = ? WHERE id = ?`,
		t.Emoji, t.Text, t.Priority, t.Desire, t.Difficulty, t.Percent, t.ID)
	if err != nil {
		return Task{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Task{}, err
	}
	if n == 0 {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAll swaps the whole list in one transaction, backing file import.
func (s *Store) ReplaceAll(ctx context.Context, list []Task) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return 0, err
	}
	for i := range list {
		t := list[i]
		t.Normalize()
		if t.ID == "" {
			id, err := newID()
			if err != nil {
				return 0, err
			}
			t.ID = id
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, emoji, text, priority, desire, difficulty, percent) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Emoji, t.Text, t.Priority, t.Desire, t.Difficulty, t.Percent); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(list), nil
}

func newID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
