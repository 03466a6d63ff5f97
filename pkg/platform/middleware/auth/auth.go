package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	id "collabhub/pkg/domain"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims are the claims this service relies on.
type JWTClaims struct {
	UserID string
	JTI    string
}

type contextKeyUserID struct{}

// ContextKeyUserID is exported for tests that inject an authenticated user.
var ContextKeyUserID = contextKeyUserID{}

// GetUserID returns the authenticated user id, or "" when absent.
func GetUserID(ctx context.Context) id.UserID {
	userID, ok := ctx.Value(ContextKeyUserID).(id.UserID)
	if !ok {
		return ""
	}
	return userID
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// BearerToken returns the token of the Authorization header, or "".
func BearerToken(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the "token" query parameter. Browsers cannot set headers
// on websocket upgrades, hence the fallback.
func TokenFromRequest(r *http.Request) string {
	if token := BearerToken(r); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Authenticate validates the request token, header or query, and returns
// the subject.
func Authenticate(r *http.Request, validator JWTValidator) (id.UserID, error) {
	return validate(TokenFromRequest(r), validator)
}

func validate(token string, validator JWTValidator) (id.UserID, error) {
	if token == "" {
		return "", fmt.Errorf("missing token")
	}
	claims, err := validator.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return id.ParseUserID(claims.UserID)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid Authorization bearer token
// and stores the authenticated user id in the request context. Query
// tokens are not accepted here.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, err := validate(BearerToken(r), validator)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access",
					"error", err,
					"request_id", chimw.GetReqID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(ctx, userID)))
		})
	}
}
