package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jorsalda/permisos-auth-core/internal/access"
	"github.com/jorsalda/permisos-auth-core/internal/account/entity"
	"github.com/jorsalda/permisos-auth-core/internal/password"
	"github.com/jorsalda/permisos-auth-core/internal/token"
)

// SessionCookie is the name of the login session cookie.
const SessionCookie = "permisos_session"

// Handler exposes HTTP endpoints for account operations.
type Handler struct {
	svc      *Service
	sessions *SessionCodec
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, sessions *SessionCodec, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// RegisterRequest is the request body for the register endpoint.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Organization string `json:"organization"`
}

type RegisterResponse struct {
	ID           string `json:"id"`
	IsSuperadmin bool   `json:"is_superadmin"`
	Message      string `json:"message"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	acct, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Organization)
	if err != nil {
		h.writeError(w, err, "registration failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, RegisterResponse{
		ID:           acct.ID,
		IsSuperadmin: acct.IsSuperadmin,
		Message:      "registered; your account starts with a 15-day trial pending administrator approval",
	})
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	acct, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		h.writeError(w, err, "login failed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    h.sessions.Encode(acct.ID, time.Now()),
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.writeJSON(w, http.StatusOK, LoginResponse{ID: acct.ID, Email: acct.Email})
}

type ResetRequestBody struct {
	Email string `json:"email"`
}

// RequestReset always answers 202 with the same message whether or not the
// address is registered, so the response shape cannot be used to probe for
// accounts.
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if _, err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, ErrTransient) {
			h.writeError(w, err, "reset request failed")
			return
		}
		h.logger.Debugw("reset requested for unknown address", "err", err)
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the address is registered, a reset link has been sent",
	})
}

type ResetConfirmBody struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req ResetConfirmBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, err, "password reset failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// StatusResponse reports the account's access state for status pages.
type StatusResponse struct {
	Granted       bool   `json:"granted"`
	Reason        string `json:"reason"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
	Detail        string `json:"detail"`
	TrialWarning  bool   `json:"trial_warning,omitempty"`
}

// Status reports the authenticated account's access decision. Reachable even
// when access is denied, so blocked users can see why.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	now := time.Now()
	d := access.Evaluate(acct, now)
	h.writeJSON(w, http.StatusOK, StatusResponse{
		Granted:       d.Granted,
		Reason:        string(d.Reason),
		DaysRemaining: d.DaysRemaining,
		Detail:        access.StatusDetail(acct, now),
		TrialWarning:  d.TrialEndingSoon(),
	})
}

// Approve handles the administrator approval transition.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.requireSuperadmin(w, r) {
		return
	}
	if err := h.svc.Approve(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err, "approve failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "account approved"})
}

type SetActiveBody struct {
	Active bool `json:"active"`
}

// SetActive handles the administrator activate/deactivate toggle.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	if !h.requireSuperadmin(w, r) {
		return
	}
	var req SetActiveBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := h.svc.SetActive(r.Context(), r.PathValue("id"), req.Active); err != nil {
		h.writeError(w, err, "update failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "account updated"})
}

// SessionAccount resolves the session cookie to an account. Shared with the
// access-gate middleware.
func (h *Handler) SessionAccount(r *http.Request) (acctID string, err error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", ErrInvalidSession
	}
	return h.sessions.Decode(c.Value)
}

func (h *Handler) sessionAccount(w http.ResponseWriter, r *http.Request) (*entity.Account, bool) {
	id, err := h.SessionAccount(r)
	if err != nil {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return nil, false
	}
	a, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "lookup failed")
		return nil, false
	}
	return a, true
}

func (h *Handler) requireSuperadmin(w http.ResponseWriter, r *http.Request) bool {
	acct, ok := h.sessionAccount(w, r)
	if !ok {
		return false
	}
	if !acct.IsSuperadmin || !acct.IsActive {
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "administrator access required"})
		return false
	}
	return true
}

// writeError maps service errors to status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	var policyErr *PolicyError
	switch {
	case errors.As(err, &policyErr):
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "password does not meet the policy",
			"violations": password.Messages(policyErr.Violations),
		})
	case errors.Is(err, ErrDuplicateEmail):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
	case errors.Is(err, ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
	case errors.Is(err, ErrBadCredentials):
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	case errors.Is(err, ErrInactive):
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "account inactive"})
	case errors.Is(err, token.ErrInvalidToken):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or expired token"})
	case errors.Is(err, ErrTransient):
		h.logger.Warnw(fallback, "err", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporary failure, try again"})
	default:
		h.logger.Errorw(fallback, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debugw("write response", "err", err)
	}
}
