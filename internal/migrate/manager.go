// Package migrate applies SQL migration files stored on disk, tracked in a
// bookkeeping table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultTable = "schema_migrations"

// Manager executes .up.sql/.down.sql pairs from a directory in
// lexicographic order.
type Manager struct {
	db    *sql.DB
	dir   string
	table string
}

// Option configures Manager.
type Option func(*Manager)

// WithTable overrides the default bookkeeping table.
func WithTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

// NewManager constructs a Manager.
func NewManager(db *sql.DB, dir string, opts ...Option) *Manager {
	m := &Manager{db: db, dir: dir, table: defaultTable}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type migration struct {
	Base string // file name without the .up.sql/.down.sql suffix
	Path string
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	files, err := collect(m.dir, ".up.sql")
	if err != nil {
		return err
	}
	for _, mig := range files {
		if applied[mig.Base] {
			continue
		}
		if err := m.apply(ctx, mig, true); err != nil {
			return fmt.Errorf("apply %s: %w", mig.Base, err)
		}
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	var last string
	err := m.db.QueryRowContext(ctx,
		fmt.Sprintf(`select name from %s order by name desc limit 1`, m.table)).Scan(&last)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	mig := migration{Base: last, Path: filepath.Join(m.dir, last+".down.sql")}
	if err := m.apply(ctx, mig, false); err != nil {
		return fmt.Errorf("revert %s: %w", mig.Base, err)
	}
	return nil
}

// Status lists applied migrations with their timestamps.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf(`select name, applied_at::text from %s order by name asc`, m.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name, at string
		if err := rows.Scan(&name, &at); err != nil {
			return nil, err
		}
		out = append(out, name+"\t"+at)
	}
	return out, rows.Err()
}

func (m *Manager) apply(ctx context.Context, mig migration, record bool) error {
	script, err := os.ReadFile(mig.Path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return err
	}
	if record {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`insert into %s(name, applied_at) values($1, now())`, m.table), mig.Base)
	} else {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`delete from %s where name=$1`, m.table), mig.Base)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(
		`create table if not exists %s (name text primary key, applied_at timestamptz not null)`,
		m.table))
	return err
}

func (m *Manager) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, m.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

func collect(dir, suffix string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		out = append(out, migration{
			Base: strings.TrimSuffix(e.Name(), suffix),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out, nil
}
