package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is unexported so only this package can read or write the user
// ID stashed in a request context.
type contextKey string

const userIDKey contextKey = "userID"

// sessionCookie is the HttpOnly cookie carrying the JWT.
const sessionCookie = "token"

// BearerVerifier authenticates a presented API token. The auth service
// implements it; the middleware takes the interface so this package doesn't
// import the repository layer.
type BearerVerifier interface {
	VerifyAPIToken(ctx context.Context, token string) (userID string, err error)
}

// RequireAuth enforces authentication on protected routes. It accepts either
// the session cookie or an Authorization bearer API token; on success the
// user ID lands in the request context, otherwise the chain stops with 401.
//
// bearer may be nil, which disables the API-token path.
func RequireAuth(tokens *TokenService, bearer BearerVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens, bearer)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the user identity when a valid credential is
// present but never blocks the request. Handlers see an anonymous request
// as UserIDFromContext returning ("", false).
func OptionalAuth(tokens *TokenService, bearer BearerVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens, bearer); err == nil && userID != "" {
				ctx := context.WithValue(r.Context(), userIDKey, userID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID, or ("", false)
// for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID tries the session cookie first, then the bearer header.
func extractUserID(r *http.Request, tokens *TokenService, bearer BearerVerifier) (string, error) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return tokens.Validate(cookie.Value)
	}

	if bearer != nil {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			return bearer.VerifyAPIToken(r.Context(), strings.TrimPrefix(header, "Bearer "))
		}
	}

	return "", http.ErrNoCookie
}
