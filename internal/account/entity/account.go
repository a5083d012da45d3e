package entity

import "time"

// Account represents a row in the accounts table. Storage is owned by the
// repository; services only read and mutate fields through it.
type Account struct {
	ID             string     `db:"id"`
	Email          string     `db:"email"`
	PasswordHash   string     `db:"password_hash"`
	OrganizationID *string    `db:"organization_id"`
	IsSuperadmin   bool       `db:"is_superadmin"`
	IsActive       bool       `db:"is_active"`
	IsApproved     bool       `db:"is_approved"`
	RegisteredAt   time.Time  `db:"registered_at"`
	ApprovedAt     *time.Time `db:"approved_at"`
	TrialDays      int        `db:"trial_days"`
	// ExpiresAt, when set, takes precedence over TrialDays for the trial
	// window computation.
	ExpiresAt *time.Time `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// Organization is a school ("colegio") that accounts belong to.
type Organization struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}
