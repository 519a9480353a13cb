// Package middlewares holds the HTTP middlewares of the shop service.
package middlewares

import (
	"context"
	"net/http"
	"strconv"

	"github.com/sharifevents/shop-service/internal/core/ports"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserPhone = "X-User-Phone"
)

type contextKey struct{ name string }

var userContextKey = contextKey{"user"}

// Identity resolves the authenticated user from the headers the auth proxy
// forwards and rejects unauthenticated requests.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
		if err != nil || id <= 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthenticated"}`))
			return
		}
		user := ports.User{
			ID:    id,
			Email: r.Header.Get(HeaderUserEmail),
			Phone: r.Header.Get(HeaderUserPhone),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

// UserFromContext returns the user Identity stored, or the zero user when
// the middleware did not run (gateway callbacks carry no identity).
func UserFromContext(ctx context.Context) ports.User {
	user, _ := ctx.Value(userContextKey).(ports.User)
	return user
}
