package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jorsalda/permisos-auth-core/internal/account/entity"
	"github.com/jorsalda/permisos-auth-core/internal/account/repo"
	"github.com/jorsalda/permisos-auth-core/internal/credential"
	"github.com/jorsalda/permisos-auth-core/internal/mailer"
	"github.com/jorsalda/permisos-auth-core/internal/password"
	"github.com/jorsalda/permisos-auth-core/internal/token"
	"github.com/jorsalda/permisos-auth-core/pkg/utilities"
)

// Repository is the storage collaborator for accounts. The concrete
// implementation lives in internal/account/repo; tests use an in-memory
// fake. The implementation must enforce a uniqueness constraint on
// normalized email independently of the service-level existence check.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	Create(ctx context.Context, a *entity.Account) error
	Count(ctx context.Context) (int, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	Approve(ctx context.Context, id string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
	FindOrCreateOrganization(ctx context.Context, id, name string) (string, error)
}

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrBadCredentials = errors.New("invalid credentials")
	ErrInactive       = errors.New("account inactive")
	// ErrTransient wraps repository failures that the caller may retry.
	ErrTransient = errors.New("transient repository error")
)

// PolicyError carries the full itemized list of password policy violations.
type PolicyError struct {
	Violations []password.Violation
}

func (e *PolicyError) Error() string {
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, string(v))
	}
	return "password policy: " + strings.Join(codes, ", ")
}

// DefaultTrialDays is the trial window granted to new registrations.
const DefaultTrialDays = 15

// Service orchestrates registration, authentication and the password-reset
// lifecycle.
type Service struct {
	repo   Repository
	hasher credential.Hasher
	tokens *token.Service
	sender mailer.Sender
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(r Repository, hasher credential.Hasher, tokens *token.Service, sender mailer.Sender, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = credential.NewBcryptHasher()
	}
	return &Service{
		repo:   r,
		hasher: hasher,
		tokens: tokens,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// NormalizeEmail is the canonical form used as the cross-service identity
// key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account inside a fresh 15-day trial window. The
// very first account in an empty repository becomes superadmin; everyone
// else starts as a regular unapproved account.
func (s *Service) Register(ctx context.Context, email, pw, organizationName string) (*entity.Account, error) {
	email = NormalizeEmail(email)

	if ok, violations := password.Validate(pw); !ok {
		return nil, &PolicyError{Violations: violations}
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: find account: %v", ErrTransient, err)
	}

	orgID, err := s.repo.FindOrCreateOrganization(ctx, utilities.NewKSUID(), strings.TrimSpace(organizationName))
	if err != nil {
		return nil, fmt.Errorf("%w: resolve organization: %v", ErrTransient, err)
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count accounts: %v", ErrTransient, err)
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	expires := now.Add(DefaultTrialDays * 24 * time.Hour)
	acct := &entity.Account{
		ID:             utilities.NewKSUID(),
		Email:          email,
		PasswordHash:   hash,
		OrganizationID: &orgID,
		IsSuperadmin:   total == 0,
		IsActive:       true,
		IsApproved:     false,
		RegisteredAt:   now,
		TrialDays:      DefaultTrialDays,
		ExpiresAt:      &expires,
	}
	if err := s.repo.Create(ctx, acct); err != nil {
		if repo.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: create account: %v", ErrTransient, err)
	}
	s.logger.Infow("account registered", "email", email, "superadmin", acct.IsSuperadmin)
	return acct, nil
}

// Authenticate verifies credentials and the kill-switch. Trial and approval
// gating is the access evaluator's job and is intentionally not applied
// here; callers gate subsequent requests separately.
func (s *Service) Authenticate(ctx context.Context, email, pw string) (*entity.Account, error) {
	acct, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find account: %v", ErrTransient, err)
	}
	if !s.hasher.Verify(pw, acct.PasswordHash) {
		return nil, ErrBadCredentials
	}
	if !acct.IsActive {
		return nil, ErrInactive
	}
	return acct, nil
}

// RequestPasswordReset issues a signed reset token for the account and hands
// it to the notification sender. Delivery is fire-and-forget: failures are
// logged and never fail the request.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)
	if _, err := s.repo.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: find account: %v", ErrTransient, err)
	}
	tok, err := s.tokens.Issue(email)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.sender.Send(sendCtx, email, tok); err != nil {
			s.logger.Warnw("reset mail delivery failed", "email", email, "err", err)
		}
	}()
	return tok, nil
}

// ConfirmPasswordReset verifies the token, re-validates the new password and
// overwrites the stored hash. There is no old-password check; replaying a
// still-valid token with the same password is harmless.
func (s *Service) ConfirmPasswordReset(ctx context.Context, tok, newPassword string) error {
	email, err := s.tokens.Verify(tok, token.DefaultResetTTL)
	if err != nil {
		return token.ErrInvalidToken
	}
	if ok, violations := password.Validate(newPassword); !ok {
		return &PolicyError{Violations: violations}
	}
	acct, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: find account: %v", ErrTransient, err)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return fmt.Errorf("%w: update password: %v", ErrTransient, err)
	}
	s.logger.Infow("password reset", "email", email)
	return nil
}

// Approve marks an account approved as of now. Administrator action.
func (s *Service) Approve(ctx context.Context, id string) error {
	if err := s.repo.Approve(ctx, id, s.now()); err != nil {
		return fmt.Errorf("%w: approve account: %v", ErrTransient, err)
	}
	return nil
}

// SetActive toggles the administrator kill-switch.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("%w: set active: %v", ErrTransient, err)
	}
	return nil
}

// GetByID loads an account for the access-gate middleware and status pages.
func (s *Service) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find account: %v", ErrTransient, err)
	}
	return acct, nil
}
