package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"fintrack/internal/log"
)

type contextKey struct{}

// WithUserID stores the authenticated user ID in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// stores the token subject in the request context otherwise.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := log.FromContext(r.Context())

			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "Authorization header required")
				return
			}
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(tokenStr) == "" {
				unauthorized(w, "Invalid Authorization header format")
				return
			}

			userID, err := tokens.ParseToken(strings.TrimSpace(tokenStr))
			if err != nil {
				logger.WarnContext(r.Context(), "Rejected bearer token", log.FieldError, err)
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := WithUserID(r.Context(), userID)
			ctx = log.WithLogger(ctx, logger.With(log.FieldUserID, userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="fintrack"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": "UNAUTHORIZED", "message": msg})
}
