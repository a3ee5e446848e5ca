package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zhouzirui/lifesync/backend/internal/model/finance"
	"github.com/zhouzirui/lifesync/backend/internal/model/note"
	"github.com/zhouzirui/lifesync/backend/internal/model/task"
)

// TaskStore implements task.Store.
type TaskStore struct{ db *sql.DB }

// Tasks returns the task store.
func (d *DB) Tasks() *TaskStore { return &TaskStore{db: d.db} }

// ListTasks implements task.Store.
func (s *TaskStore) ListTasks(ctx context.Context, ownerID string) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, start_ns, end_ns, completed FROM tasks WHERE owner_id = ? ORDER BY start_ns ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]task.Task, 0)
	for rows.Next() {
		var (
			t          task.Task
			start, end int64
			completed  int
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &start, &end, &completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Start = fromNanos(start)
		t.End = fromNanos(end)
		t.Completed = completed != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveTask inserts or replaces a task, assigning an id when missing.
func (s *TaskStore) SaveTask(ctx context.Context, t task.Task) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	completed := 0
	if t.Completed {
		completed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tasks (id, owner_id, title, start_ns, end_ns, completed) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Title, toNanos(t.Start), toNanos(t.End), completed)
	if err != nil {
		return "", fmt.Errorf("save task: %w", err)
	}
	return t.ID, nil
}

// FinanceStore implements finance.Store.
type FinanceStore struct{ db *sql.DB }

// Finances returns the finance store.
func (d *DB) Finances() *FinanceStore { return &FinanceStore{db: d.db} }

// GetFinance implements finance.Store.
func (s *FinanceStore) GetFinance(ctx context.Context, ownerID string) (finance.Finance, error) {
	f := finance.Finance{OwnerID: ownerID}
	err := s.db.QueryRowContext(ctx, `SELECT income, budget FROM finances WHERE owner_id = ?`, ownerID).Scan(&f.Income, &f.Budget)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.Finance{}, finance.ErrNotFound
		}
		return finance.Finance{}, fmt.Errorf("query finance: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, amount, budget, category FROM expenses WHERE owner_id = ? ORDER BY id ASC`, ownerID)
	if err != nil {
		return finance.Finance{}, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e finance.Expense
		if err := rows.Scan(&e.Name, &e.Amount, &e.Budget, &e.Category); err != nil {
			return finance.Finance{}, fmt.Errorf("scan expense: %w", err)
		}
		f.Expenses = append(f.Expenses, e)
	}
	return f, rows.Err()
}

// SaveFinance replaces the owner's finance record and expenses.
func (s *FinanceStore) SaveFinance(ctx context.Context, f finance.Finance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO finances (owner_id, income, budget) VALUES (?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET income = excluded.income, budget = excluded.budget`,
		f.OwnerID, f.Income, f.Budget); err != nil {
		return fmt.Errorf("save finance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE owner_id = ?`, f.OwnerID); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	for _, e := range f.Expenses {
		category := strings.TrimSpace(e.Category)
		if category == "" {
			category = "Other"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (owner_id, name, amount, budget, category) VALUES (?, ?, ?, ?, ?)`,
			f.OwnerID, e.Name, e.Amount, e.Budget, category); err != nil {
			return fmt.Errorf("save expense: %w", err)
		}
	}
	return tx.Commit()
}

// NoteStore implements note.Store.
type NoteStore struct{ db *sql.DB }

// Notes returns the note store.
func (d *DB) Notes() *NoteStore { return &NoteStore{db: d.db} }

// ListRecentNotes implements note.Store.
func (s *NoteStore) ListRecentNotes(ctx context.Context, ownerID string, limit int) ([]note.Note, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, content, updated_at_ns FROM notes WHERE owner_id = ? ORDER BY updated_at_ns DESC LIMIT ?`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// FindByTitle implements note.Store.
func (s *NoteStore) FindByTitle(ctx context.Context, ownerID, title string) (note.Note, error) {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" {
		return note.Note{}, note.ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, content, updated_at_ns FROM notes
		 WHERE owner_id = ? AND instr(lower(title), ?) > 0 ORDER BY updated_at_ns DESC LIMIT 1`,
		ownerID, needle)
	if err != nil {
		return note.Note{}, fmt.Errorf("find note: %w", err)
	}
	defer rows.Close()

	notes, err := scanNotes(rows)
	if err != nil {
		return note.Note{}, err
	}
	if len(notes) == 0 {
		return note.Note{}, note.ErrNotFound
	}
	return notes[0], nil
}

// SaveNote inserts or replaces a note, assigning an id when missing.
func (s *NoteStore) SaveNote(ctx context.Context, n note.Note) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO notes (id, owner_id, title, content, updated_at_ns) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.OwnerID, n.Title, n.Content, toNanos(n.UpdatedAt))
	if err != nil {
		return "", fmt.Errorf("save note: %w", err)
	}
	return n.ID, nil
}

func scanNotes(rows *sql.Rows) ([]note.Note, error) {
	out := make([]note.Note, 0)
	for rows.Next() {
		var (
			n       note.Note
			updated int64
		)
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &updated); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.UpdatedAt = fromNanos(updated)
		out = append(out, n)
	}
	return out, rows.Err()
}
