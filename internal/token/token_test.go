package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *Service {
	return NewService(Config{Secret: []byte("una-clave-de-prueba-larga")})
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	s := testService()
	tok, err := s.Issue("a@b.com")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	email, err := s.Verify(tok, DefaultResetTTL)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
}

func TestVerifyZeroTTL(t *testing.T) {
	t.Parallel()

	s := testService()
	base := time.Now()
	s.now = func() time.Time { return base }
	tok, err := s.Issue("a@b.com")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Second) }
	_, err = s.Verify(tok, 0)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	s := testService()
	base := time.Now()
	s.now = func() time.Time { return base }
	tok, err := s.Issue("a@b.com")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(DefaultResetTTL + time.Minute) }
	_, err = s.Verify(tok, DefaultResetTTL)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// still valid just inside the window
	s.now = func() time.Time { return base.Add(DefaultResetTTL - time.Minute) }
	email, err := s.Verify(tok, DefaultResetTTL)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
}

func TestVerifyTamperedToken(t *testing.T) {
	t.Parallel()

	s := testService()
	tok, err := s.Issue("a@b.com")
	require.NoError(t, err)

	// flip a single character somewhere in the payload
	mid := len(tok) / 2
	flipped := byte('A')
	if tok[mid] == flipped {
		flipped = 'B'
	}
	tampered := tok[:mid] + string(flipped) + tok[mid+1:]

	_, err = s.Verify(tampered, DefaultResetTTL)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := testService().Issue("a@b.com")
	require.NoError(t, err)

	other := NewService(Config{Secret: []byte("otra-clave-distinta-larga")})
	_, err = other.Verify(tok, DefaultResetTTL)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()

	s := testService()
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		_, err := s.Verify(tok, DefaultResetTTL)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestIssueTwiceBothVerify(t *testing.T) {
	t.Parallel()

	s := testService()
	base := time.Now()
	s.now = func() time.Time { return base }
	first, err := s.Issue("a@b.com")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(time.Second) } // distinct iat second
	second, err := s.Issue("a@b.com")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	for _, tok := range []string{first, second} {
		email, err := s.Verify(tok, DefaultResetTTL)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", email)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	_, err := ConfigFromEnv()
	require.Error(t, err)

	t.Setenv("SECRET_KEY", "short")
	_, err = ConfigFromEnv()
	require.Error(t, err)

	t.Setenv("SECRET_KEY", "clave-suficientemente-larga")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []byte("clave-suficientemente-larga"), cfg.Secret)
}
