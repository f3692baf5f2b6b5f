package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/munezero-grace/student-registration-backend/internal/httputil"
	"github.com/munezero-grace/student-registration-backend/internal/user"
)

// Authenticate validates the Authorization bearer token, loads the token's
// subject from the store and attaches it to the request context.
//
//	401 - header missing/malformed, or token invalid/expired
//	404 - token subject no longer exists
func Authenticate(tm *TokenManager, users user.Repository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				logger.WarnContext(r.Context(), "missing bearer token", "path", r.URL.Path)
				httputil.RespondWithError(w, http.StatusUnauthorized,
					"Access denied. No token provided or invalid format.")
				return
			}

			claims, err := tm.Validate(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				logger.WarnContext(r.Context(), "token validation failed", "error", err)
				if errors.Is(err, ErrExpiredToken) {
					httputil.RespondWithError(w, http.StatusUnauthorized, "Token expired.")
				} else {
					httputil.RespondWithError(w, http.StatusUnauthorized, "Invalid token.")
				}
				return
			}

			u, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					httputil.RespondWithError(w, http.StatusNotFound, "User not found.")
					return
				}
				logger.ErrorContext(r.Context(), "failed to load token subject", "error", err)
				httputil.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(user.NewContext(r.Context(), u)))
		})
	}
}

// RequireAdmin rejects requests whose authenticated user is not an admin.
// Must run after Authenticate in the middleware chain.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := user.FromContext(r.Context())
			if !ok || u.Role != user.RoleAdmin {
				logger.WarnContext(r.Context(), "admin access denied", "path", r.URL.Path)
				httputil.RespondWithError(w, http.StatusForbidden, "Access denied: Admins only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
