package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// withAuth gates a handler behind the configured bearer token. When no token
// is configured the handler runs unauthenticated.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthDisabled() {
			next(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			s.logger.Warn("missing authorization header", "remote_addr", r.RemoteAddr)
			unauthorized(w, "missing authorization header")
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			s.logger.Warn("invalid authorization format", "remote_addr", r.RemoteAddr)
			unauthorized(w, "invalid authorization format")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.BearerToken)) != 1 {
			s.logger.Warn("invalid bearer token", "remote_addr", r.RemoteAddr)
			unauthorized(w, "invalid token")
			return
		}

		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	http.Error(w, `{"error":"`+msg+`"}`, http.StatusUnauthorized)
}
