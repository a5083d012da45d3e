// Package mailer delivers password-reset links. Delivery is a collaborator
// of the account lifecycle: failures are logged by the caller and never fail
// the reset-request flow itself.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
)

// Sender sends a password-reset token to an email address.
type Sender interface {
	Send(ctx context.Context, email, token string) error
}

type Config struct {
	APIKey    string
	FromEmail string
	// ResetURLBase is the page the emailed link points at; the token is
	// appended as a query parameter.
	ResetURLBase string
}

// ConfigFromEnv reads mail delivery config from environment variables.
func ConfigFromEnv() Config {
	from := os.Getenv("RESEND_FROM_EMAIL")
	if from == "" {
		from = "onboarding@resend.dev"
	}
	base := os.Getenv("RESET_URL_BASE")
	if base == "" {
		base = "http://localhost:8431/permisos-auth/reset-password"
	}
	return Config{
		APIKey:       os.Getenv("RESEND_API_KEY"),
		FromEmail:    from,
		ResetURLBase: base,
	}
}

const resendEndpoint = "https://api.resend.com/emails"

// ResendSender delivers reset mails through the Resend HTTP API.
type ResendSender struct {
	cfg      Config
	client   *http.Client
	endpoint string
}

func NewResendSender(cfg Config) *ResendSender {
	return &ResendSender{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}, endpoint: resendEndpoint}
}

func (s *ResendSender) resetURL(tok string) string {
	return s.cfg.ResetURLBase + "?token=" + url.QueryEscape(tok)
}

func (s *ResendSender) Send(ctx context.Context, email, tok string) error {
	payload := map[string]any{
		"from":    s.cfg.FromEmail,
		"to":      []string{email},
		"subject": "Password recovery",
		"html":    fmt.Sprintf(`<a href="%s">Reset your password</a>`, s.resetURL(tok)),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mail payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send mail: resend responded %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes the reset link to the log instead of sending mail. Used
// in development and when no API key is configured.
type LogSender struct {
	logger *zap.SugaredLogger
	base   string
}

func NewLogSender(logger *zap.SugaredLogger, cfg Config) *LogSender {
	return &LogSender{logger: logger, base: cfg.ResetURLBase}
}

func (s *LogSender) Send(_ context.Context, email, tok string) error {
	s.logger.Infow("password reset link", "email", email, "url", s.base+"?token="+url.QueryEscape(tok))
	return nil
}
