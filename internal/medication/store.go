package medication

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Store holds every medication list of the process in one in-memory SQLite
// database. Nothing is written to disk.
type Store struct {
	db *sql.DB
}

// NewStore opens a private in-memory database and creates the schema.
func NewStore() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// one connection, otherwise each pooled connection sees its own empty database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS medications (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			list_id TEXT NOT NULL,
			name TEXT NOT NULL,
			purpose TEXT NOT NULL,
			timing TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_medications_list ON medications(list_id, seq);`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate medications: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored rows across all lists.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM medications`).Scan(&n)
	return n, err
}

func (s *Store) insert(ctx context.Context, listID string, m Medication) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO medications(id, list_id, name, purpose, timing, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, listID, m.Name, m.Purpose, m.Timing, m.CreatedAt)
	if isConstraintErr(err) {
		return fmt.Errorf("medication %s already exists: %w", m.ID, err)
	}
	return err
}

func (s *Store) delete(ctx context.Context, listID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM medications WHERE list_id=? AND id=?`, listID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) list(ctx context.Context, listID string) ([]Medication, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, purpose, timing, created_at
		FROM medications
		WHERE list_id=?
		ORDER BY seq ASC`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Medication{}
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.Name, &m.Purpose, &m.Timing, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) count(ctx context.Context, listID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM medications WHERE list_id=?`, listID).Scan(&n)
	return n, err
}

func (s *Store) clear(ctx context.Context, listID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM medications WHERE list_id=?`, listID)
	return err
}

func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "unique constraint")
}
