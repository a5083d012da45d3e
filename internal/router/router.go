package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jorsalda/permisos-auth-core/internal/access"
	"github.com/jorsalda/permisos-auth-core/internal/account"
	"github.com/jorsalda/permisos-auth-core/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs requests at debug level, stamping each with a
// snowflake request ID.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := utilities.NewSnowflakeID()
			w.Header().Set("X-Request-Id", reqID)
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessGate authorizes protected routes. It resolves the session account,
// asks the access evaluator for a decision, and rejects with the reason when
// access is denied. When the trial is ending soon it sets an advisory
// X-Trial-Warning header; the warning never affects the decision itself.
func AccessGate(logger *zap.SugaredLogger, h *account.Handler, svc *account.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := h.SessionAccount(r)
			if err != nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			acct, err := svc.GetByID(r.Context(), id)
			if err != nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			d := access.Evaluate(acct, time.Now())
			if !d.Granted {
				logger.Debugw("access denied", "account", acct.ID, "reason", d.Reason)
				http.Error(w, "access restricted: "+string(d.Reason), http.StatusForbidden)
				return
			}
			if d.TrialEndingSoon() {
				w.Header().Set("X-Trial-Warning", "trial period ending soon, request administrator approval")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts HTTP handlers using the standard library's
// http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, h *account.Handler, svc *account.Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /permisos-auth/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /permisos-auth/register", h.Register)
	mux.HandleFunc("POST /permisos-auth/login", h.Login)
	mux.HandleFunc("POST /permisos-auth/password-reset/request", h.RequestReset)
	mux.HandleFunc("POST /permisos-auth/password-reset/confirm", h.ConfirmReset)

	// status stays outside the gate so blocked accounts can see why
	mux.HandleFunc("GET /permisos-auth/account-status", h.Status)

	gate := AccessGate(logger, h, svc)
	mux.Handle("POST /permisos-auth/admin/accounts/{id}/approve", gate(http.HandlerFunc(h.Approve)))
	mux.Handle("POST /permisos-auth/admin/accounts/{id}/active", gate(http.HandlerFunc(h.SetActive)))

	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
}
