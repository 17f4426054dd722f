package middleware

import (
	"log/slog"
	"net/http"

	"github.com/aiwriterpros/aiwriter/internal/csrf"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/handler"
	"github.com/aiwriterpros/aiwriter/internal/session"
)

// CSRFMiddleware guards cookie-authenticated requests. Bearer clients and
// anonymous requests pass through untouched.
type CSRFMiddleware struct {
	logger   *slog.Logger
	isSecure bool
}

// NewCSRFMiddleware creates a new CSRFMiddleware.
func NewCSRFMiddleware(logger *slog.Logger, isSecure bool) *CSRFMiddleware {
	return &CSRFMiddleware{logger: logger, isSecure: isSecure}
}

// Protect issues the CSRF cookie on safe requests and requires the
// X-CSRF-Token header to match it on unsafe ones.
func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !usesSessionCookie(r) {
			next.ServeHTTP(w, r)
			return
		}

		if csrf.IsSafeMethod(r.Method) {
			if _, err := csrf.EnsureToken(w, r, m.isSecure); err != nil {
				m.logger.Error("failed to issue csrf token", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		if !csrf.ValidateRequest(r) {
			handler.ErrorResponse(w, r, m.logger, domain.Forbidden("CSRFMiddleware.Protect", "Missing or invalid CSRF token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// usesSessionCookie reports whether the browser session cookie is the
// request's credential.
func usesSessionCookie(r *http.Request) bool {
	if r.Header.Get("Authorization") != "" {
		return false
	}
	_, err := r.Cookie(session.CookieName)
	return err == nil
}
