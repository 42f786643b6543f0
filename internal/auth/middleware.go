package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// SessionCookie carries the portal token for browser downloads, where the
// student portal cannot set an Authorization header.
const SessionCookie = "soa_session"

// Middleware authenticates portal tokens and enforces the policy.
type Middleware struct {
	verifier *TokenVerifier
	policy   Policy
	logger   *zap.Logger
}

func NewMiddleware(verifier *TokenVerifier, policy Policy, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{verifier: verifier, policy: policy, logger: logger}
}

func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.verifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		required, protected := m.policy.Require(r)
		if !protected {
			next.ServeHTTP(w, r)
			return
		}
		id, err := m.verifier.Verify(tokenFrom(r))
		if err != nil {
			m.logger.Debug("rejected token", zap.String("path", r.URL.Path), zap.Error(err))
			deny(w, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
		if !id.Role.Covers(required) {
			m.logger.Info("access denied",
				zap.String("path", r.URL.Path),
				zap.String("subject", id.Subject),
				zap.String("role", string(id.Role)),
				zap.String("required", string(required)),
			)
			deny(w, http.StatusForbidden, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id.SchoolID, id.Role, id.Subject)))
	})
}

func tokenFrom(r *http.Request) string {
	if scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func deny(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": strings.TrimPrefix(err.Error(), "auth: ")})
}
