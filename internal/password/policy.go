package password

import (
	"strings"
	"unicode/utf8"
)

// Violation identifies a single password policy rule that a candidate
// password failed.
type Violation string

const (
	TooShort  Violation = "TOO_SHORT"
	NoUpper   Violation = "NO_UPPER"
	NoLower   Violation = "NO_LOWER"
	NoDigit   Violation = "NO_DIGIT"
	NoSymbol  Violation = "NO_SYMBOL"
	TooCommon Violation = "TOO_COMMON"
)

// Message returns a user-facing description of the violation.
func (v Violation) Message() string {
	switch v {
	case TooShort:
		return "password must be at least 8 characters long"
	case NoUpper:
		return "password must contain at least one uppercase letter"
	case NoLower:
		return "password must contain at least one lowercase letter"
	case NoDigit:
		return "password must contain at least one digit"
	case NoSymbol:
		return `password must contain at least one special character (!@#$%^&*(),.?":{}|<>)`
	case TooCommon:
		return "password is too common, choose a stronger one"
	default:
		return string(v)
	}
}

const symbols = `!@#$%^&*(),.?":{}|<>`

// denylist of well-known weak passwords, matched case-insensitively.
var commonPasswords = []string{"password", "12345678", "qwerty", "admin123", "contraseña"}

// Validate checks a candidate password against all policy rules. Every rule
// is evaluated so the caller can report the complete violation list; valid is
// true iff no rule failed.
func Validate(pw string) (valid bool, violations []Violation) {
	// length counts characters, not bytes; multibyte runes are one character
	if utf8.RuneCountInString(pw) < 8 {
		violations = append(violations, TooShort)
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(symbols, r):
			hasSymbol = true
		}
	}
	if !hasUpper {
		violations = append(violations, NoUpper)
	}
	if !hasLower {
		violations = append(violations, NoLower)
	}
	if !hasDigit {
		violations = append(violations, NoDigit)
	}
	if !hasSymbol {
		violations = append(violations, NoSymbol)
	}
	lowered := strings.ToLower(pw)
	for _, common := range commonPasswords {
		if lowered == common {
			violations = append(violations, TooCommon)
			break
		}
	}
	return len(violations) == 0, violations
}

// Messages renders a violation list as user-facing strings, in order.
func Messages(violations []Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Message())
	}
	return out
}
