// Package access is the single source of truth for whether an account may
// use the system. Every call site gates on Evaluate instead of re-deriving
// flag and trial-date logic.
package access

import (
	"fmt"
	"time"

	"github.com/jorsalda/permisos-auth-core/internal/account/entity"
)

// Reason explains an access decision.
type Reason string

const (
	ReasonDeactivated  Reason = "DEACTIVATED"
	ReasonSuperadmin   Reason = "SUPERADMIN"
	ReasonApproved     Reason = "APPROVED"
	ReasonTrialActive  Reason = "TRIAL_ACTIVE"
	ReasonTrialExpired Reason = "TRIAL_EXPIRED"
)

// Decision is the result of evaluating an account's access state. It is a
// value type and never persisted. DaysRemaining is meaningful only when
// Reason is ReasonTrialActive.
type Decision struct {
	Granted       bool
	Reason        Reason
	DaysRemaining int
}

// TrialEndingSoon reports whether the caller should surface a "trial ending
// soon" notice. Advisory only; it never affects Granted.
func (d Decision) TrialEndingSoon() bool {
	return d.Reason == ReasonTrialActive && d.DaysRemaining > 0 && d.DaysRemaining <= 3
}

// Evaluate decides whether an account may access the system at the given
// instant. Pure and deterministic; checks run in strict priority order and
// the first match wins:
//
//  1. deactivated accounts are denied, even superadmins
//  2. superadmins are granted
//  3. approved accounts are granted, dates are irrelevant once approved
//  4. an explicit expiration date bounds the trial when present
//  5. otherwise the trial window is RegisteredAt plus TrialDays
func Evaluate(acct *entity.Account, now time.Time) Decision {
	if !acct.IsActive {
		return Decision{Granted: false, Reason: ReasonDeactivated}
	}
	if acct.IsSuperadmin {
		return Decision{Granted: true, Reason: ReasonSuperadmin}
	}
	if acct.IsApproved {
		return Decision{Granted: true, Reason: ReasonApproved}
	}
	if acct.ExpiresAt != nil {
		if !now.After(*acct.ExpiresAt) {
			days := int(acct.ExpiresAt.Sub(now).Hours() / 24)
			return Decision{Granted: true, Reason: ReasonTrialActive, DaysRemaining: days}
		}
		return Decision{Granted: false, Reason: ReasonTrialExpired}
	}
	elapsed := int(now.Sub(acct.RegisteredAt).Hours() / 24)
	remaining := acct.TrialDays - elapsed
	if remaining >= 0 {
		return Decision{Granted: true, Reason: ReasonTrialActive, DaysRemaining: remaining}
	}
	return Decision{Granted: false, Reason: ReasonTrialExpired}
}

// StatusDetail renders a human-readable account state line for status pages.
func StatusDetail(acct *entity.Account, now time.Time) string {
	switch d := Evaluate(acct, now); d.Reason {
	case ReasonDeactivated:
		return "account deactivated by an administrator"
	case ReasonSuperadmin:
		return "superadministrator"
	case ReasonApproved:
		if acct.ApprovedAt != nil {
			days := int(now.Sub(*acct.ApprovedAt).Hours() / 24)
			return fmt.Sprintf("approved (%d days ago)", days)
		}
		return "approved"
	case ReasonTrialActive:
		return fmt.Sprintf("on trial (%d days remaining)", d.DaysRemaining)
	default:
		return "trial expired without approval"
	}
}
