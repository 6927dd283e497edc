// Package store persists the daemon's worksheet of named quantities in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/misu-units/misu/pkg/quantity"
)

var ErrNotFound = errors.New("worksheet entry not found")

// Entry is one named quantity. Quantity carries no formatting context;
// callers bind it before rendering.
type Entry struct {
	ID        string
	Name      string
	Expr      string
	Quantity  quantity.Quantity
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the worksheet database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create worksheet dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	var stmts []string
	for _, line := range strings.Split(GetSchema(), "\n") {
		if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
			stmts = append(stmts, line)
		}
	}
	if _, err := s.db.Exec(strings.Join(stmts, "\n")); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	_, _ = s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Set stores q under name, replacing any earlier value. The entry keeps
// its id and creation time across replacements.
func (s *Store) Set(ctx context.Context, name, expr string, q quantity.Quantity) (*Entry, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("worksheet name must not be empty")
	}
	blob, err := q.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO worksheet (id, name, expr, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			expr = excluded.expr,
			value = excluded.value,
			updated_at = excluded.updated_at
	`, uuid.NewString(), name, expr, blob, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", name, err)
	}
	return s.get(ctx, name)
}

func (s *Store) Get(ctx context.Context, name string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, name)
}

func (s *Store) get(ctx context.Context, name string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, expr, value, created_at, updated_at FROM worksheet WHERE name = ?`, name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, err
}

// List returns every entry ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, expr, value, created_at, updated_at FROM worksheet ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list worksheet: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM worksheet WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM worksheet`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e    Entry
		blob []byte
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Expr, &blob, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := e.Quantity.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Name, err)
	}
	return &e, nil
}
