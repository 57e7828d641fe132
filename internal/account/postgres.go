package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"lexora.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL via database/sql over the pgx
// stdlib driver.
type PGStore struct {
	db *sql.DB
}

// OpenPG opens a pooled connection for the given DSN.
func OpenPG(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing connection pool.
func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Accounts(context.Context) AccountStore { return &pgAccounts{db: s.db} }
func (s *PGStore) Grants(context.Context) GrantStore     { return &pgGrants{db: s.db} }

// 23505 is unique_violation; both the email index and the (subject, firm)
// grant constraint surface through it.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func marshalPerms(p PermissionSet) []byte {
	data, _ := json.Marshal(p)
	return data
}

// Account store ------------------------------------------------------------

type pgAccounts struct{ db *sql.DB }

const accountColumns = `id, email, password_hash, kind, display_name, firm_name, status, permissions, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var (
		a     Account
		perms []byte
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Kind, &a.DisplayName,
		&a.FirmName, &a.Status, &perms, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(perms, &a.Permissions); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *pgAccounts) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`insert into accounts(id, email, password_hash, kind, display_name, firm_name, status, permissions, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.Email, a.PasswordHash, a.Kind, a.DisplayName, a.FirmName,
		a.Status, marshalPerms(a.Permissions), a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *pgAccounts) Find(ctx context.Context, id string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id=$1`, id))
}

func (s *pgAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where lower(email)=lower($1)`, email))
}

func (s *pgAccounts) FindFirmByName(ctx context.Context, name string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where kind=$1 and firm_name=$2`,
		KindFirmAdmin, name))
}

func (s *pgAccounts) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set status=$1, updated_at=now() where id=$2`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgAccounts) ResetFirm(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set firm_name='', status=$1, updated_at=now() where id=$2`,
		StatusPending, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgAccounts) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from accounts where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Grant store --------------------------------------------------------------

type pgGrants struct{ db *sql.DB }

var _ StatusMirror = (*pgGrants)(nil)

const grantColumns = `id, subject_account_id, firm_account_id, status, permissions, created_at, updated_at`

func scanGrant(row interface{ Scan(...any) error }) (*AccessGrant, error) {
	var (
		g     AccessGrant
		perms []byte
	)
	err := row.Scan(&g.ID, &g.SubjectAccountID, &g.FirmAccountID, &g.Status,
		&perms, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(perms, &g.Permissions); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *pgGrants) Create(ctx context.Context, g *AccessGrant) error {
	if g.ID == "" {
		g.ID = ids.New()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`insert into access_grants(id, subject_account_id, firm_account_id, status, permissions, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		g.ID, g.SubjectAccountID, g.FirmAccountID, g.Status,
		marshalPerms(g.Permissions), g.CreatedAt, g.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *pgGrants) FindBySubject(ctx context.Context, subjectID, firmID string) (*AccessGrant, error) {
	return scanGrant(s.db.QueryRowContext(ctx,
		`select `+grantColumns+` from access_grants where subject_account_id=$1 and firm_account_id=$2`,
		subjectID, firmID))
}

func (s *pgGrants) ListByFirm(ctx context.Context, firmID string) ([]*AccessGrant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+grantColumns+` from access_grants where firm_account_id=$1 order by created_at asc`,
		firmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *pgGrants) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`update access_grants set status=$1, updated_at=now() where id=$2`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateStatusWithMirror writes the grant status and the account mirror in
// one transaction, so callers never observe the two records disagreeing.
func (s *pgGrants) UpdateStatusWithMirror(ctx context.Context, grantID, subjectID string, status Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update access_grants set status=$1, updated_at=now() where id=$2`, status, grantID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	res, err = tx.ExecContext(ctx,
		`update accounts set status=$1, updated_at=now() where id=$2`, status, subjectID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *pgGrants) UpdatePermissions(ctx context.Context, id string, perms PermissionSet) error {
	res, err := s.db.ExecContext(ctx,
		`update access_grants set permissions=$1, updated_at=now() where id=$2`,
		marshalPerms(perms), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgGrants) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from access_grants where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
