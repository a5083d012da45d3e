package router

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jorsalda/permisos-auth-core/internal/account"
	"github.com/jorsalda/permisos-auth-core/internal/account/entity"
	"github.com/jorsalda/permisos-auth-core/internal/credential"
	"github.com/jorsalda/permisos-auth-core/internal/token"
)

// stubRepo holds accounts keyed by ID; just enough Repository for the gate.
type stubRepo struct {
	byID map[string]*entity.Account
}

func (r *stubRepo) GetByID(_ context.Context, id string) (*entity.Account, error) {
	if a, ok := r.byID[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubRepo) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	for _, a := range r.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubRepo) Create(_ context.Context, a *entity.Account) error {
	r.byID[a.ID] = a
	return nil
}

func (r *stubRepo) Count(_ context.Context) (int, error) { return len(r.byID), nil }

func (r *stubRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.byID[id].PasswordHash = hash
	return nil
}

func (r *stubRepo) Approve(_ context.Context, id string, at time.Time) error {
	r.byID[id].IsApproved = true
	r.byID[id].ApprovedAt = &at
	return nil
}

func (r *stubRepo) SetActive(_ context.Context, id string, active bool) error {
	r.byID[id].IsActive = active
	return nil
}

func (r *stubRepo) FindOrCreateOrganization(_ context.Context, id, _ string) (string, error) {
	return id, nil
}

type senderFunc func(ctx context.Context, email, tok string) error

func (f senderFunc) Send(ctx context.Context, email, tok string) error { return f(ctx, email, tok) }

func fixture(t *testing.T, accounts ...*entity.Account) (*account.Handler, *account.Service, *account.SessionCodec) {
	t.Helper()
	repo := &stubRepo{byID: map[string]*entity.Account{}}
	for _, a := range accounts {
		repo.byID[a.ID] = a
	}
	tokens := token.NewService(token.Config{Secret: []byte("clave-de-prueba-larga")})
	drop := senderFunc(func(context.Context, string, string) error { return nil })
	svc := account.NewService(repo, credential.BcryptHasher{Cost: 4}, tokens, drop, zap.NewNop().Sugar())
	sessions := account.NewSessionCodec([]byte("clave-de-sesion-prueba"))
	return account.NewHandler(svc, sessions, zap.NewNop().Sugar()), svc, sessions
}

func onTrial(id string, daysLeft int) *entity.Account {
	exp := time.Now().AddDate(0, 0, daysLeft)
	return &entity.Account{
		ID:           id,
		Email:        id + "@colegio.edu",
		IsActive:     true,
		RegisteredAt: time.Now().AddDate(0, 0, daysLeft-15),
		TrialDays:    15,
		ExpiresAt:    &exp,
	}
}

func TestAccessGate(t *testing.T) {
	t.Parallel()

	active := onTrial("active", 10)
	ending := onTrial("ending", 2)
	expired := onTrial("expired", -1)
	blocked := onTrial("blocked", 10)
	blocked.IsActive = false

	h, svc, sessions := fixture(t, active, ending, expired, blocked)

	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })
	gate := AccessGate(zap.NewNop().Sugar(), h, svc)(next)

	get := func(acctID string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if acctID != "" {
			r.AddCookie(&http.Cookie{Name: account.SessionCookie, Value: sessions.Encode(acctID, time.Now())})
		}
		w := httptest.NewRecorder()
		reached = false
		gate.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, get("").Code)
	assert.False(t, reached)

	w := get("active")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
	assert.Empty(t, w.Header().Get("X-Trial-Warning"))

	w = get("ending")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
	assert.NotEmpty(t, w.Header().Get("X-Trial-Warning"))

	w = get("expired")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, reached)
	assert.Contains(t, w.Body.String(), "TRIAL_EXPIRED")

	w = get("blocked")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, reached)
	assert.Contains(t, w.Body.String(), "DEACTIVATED")
}

func TestRegisterRoutes(t *testing.T) {
	t.Parallel()

	h, svc, _ := fixture(t)
	handler := RegisterRoutes(zap.NewNop().Sugar(), h, svc)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/permisos-auth/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}
