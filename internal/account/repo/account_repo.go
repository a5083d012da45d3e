package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jorsalda/permisos-auth-core/internal/account/entity"
)

// AccountRepo provides data access for the accounts and organizations
// tables using sqlx.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. The unique index on accounts.email is what makes concurrent
// duplicate registrations fail safely; the service-level existence check is
// only a fast path.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// EnsureTable creates the organizations and accounts tables if they do not
// exist (idempotent). Convenience for early development; prefer migrations
// in production.
func (r *AccountRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS organizations (
  id VARCHAR(32) PRIMARY KEY,
  name TEXT UNIQUE NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS accounts (
  id VARCHAR(32) PRIMARY KEY,
  email CITEXT UNIQUE NOT NULL,
  password_hash TEXT NOT NULL,
  organization_id VARCHAR(32) REFERENCES organizations(id),
  is_superadmin BOOLEAN NOT NULL DEFAULT false,
  is_active BOOLEAN NOT NULL DEFAULT true,
  is_approved BOOLEAN NOT NULL DEFAULT false,
  registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  approved_at TIMESTAMPTZ,
  trial_days INT NOT NULL DEFAULT 15,
  expires_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
CREATE INDEX IF NOT EXISTS idx_accounts_organization_id ON accounts(organization_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) error {
	const q = `INSERT INTO accounts
		(id, email, password_hash, organization_id, is_superadmin, is_active, is_approved,
		 registered_at, approved_at, trial_days, expires_at)
		VALUES (:id, :email, :password_hash, :organization_id, :is_superadmin, :is_active,
		 :is_approved, :registered_at, :approved_at, :trial_days, :expires_at)`
	_, err := r.db.NamedExecContext(ctx, q, a)
	return err
}

// GetByEmail returns an account matched by email (case-insensitive due to
// citext) or sql.ErrNoRows.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	const q = `SELECT id, email, password_hash, organization_id, is_superadmin, is_active,
		is_approved, registered_at, approved_at, trial_days, expires_at, created_at, updated_at
	  FROM accounts WHERE email=$1`
	var row entity.Account
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByID fetches a full account row.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	const q = `SELECT id, email, password_hash, organization_id, is_superadmin, is_active,
		is_approved, registered_at, approved_at, trial_days, expires_at, created_at, updated_at
	  FROM accounts WHERE id=$1`
	var row entity.Account
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// Count returns the total number of accounts.
func (r *AccountRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM accounts`); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdatePassword overwrites the stored password hash.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	const q = `UPDATE accounts SET password_hash=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, hash)
	return err
}

// Approve marks an account as approved; trial dates become irrelevant after
// this transition.
func (r *AccountRepo) Approve(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE accounts SET is_approved=true, approved_at=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, at)
	return err
}

// SetActive toggles the administrator kill-switch.
func (r *AccountRepo) SetActive(ctx context.Context, id string, active bool) error {
	const q = `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, active)
	return err
}

// FindOrCreateOrganization resolves an organization by name, inserting it
// when absent, and returns its ID. The insert tolerates a concurrent
// creation of the same name.
func (r *AccountRepo) FindOrCreateOrganization(ctx context.Context, id, name string) (string, error) {
	const ins = `INSERT INTO organizations (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name=EXCLUDED.name
		RETURNING id`
	var got string
	if err := r.db.GetContext(ctx, &got, ins, id, name); err != nil {
		return "", err
	}
	return got, nil
}
