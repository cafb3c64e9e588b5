package middleware

import (
	"context"
	"net/http"
	"strings"

	"taskspace/internal/domain"
	"taskspace/pkg/response"
)

type contextKey string

const UserIDKey contextKey = "userID"

// Principal is the signed-in user of the running client, nil when signed out.
type Principal interface {
	CurrentUser() *domain.User
}

// Authenticator signs a user in from a bearer token.
type Authenticator interface {
	Login(token string) (*domain.User, error)
}

// RequireSession rejects requests while no principal is signed in. A bearer
// token on the request signs the user in first when auth is non-nil.
func RequireSession(principal Principal, auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			user := principal.CurrentUser()

			// Signing in again as the same user does not notify subscribers.
			if token := bearerToken(r); token != "" && auth != nil {
				signed, err := auth.Login(token)
				if err != nil {
					response.Unauthorized(w, "Invalid or expired token")
					return
				}
				user = signed
			}

			if user == nil {
				response.Unauthorized(w, "not signed in")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
