package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type userIDKey struct{}

// userFromContext returns the attributed user ID, or "system" when the
// request carried no identity. Ledger rows always record an actor.
func userFromContext(ctx context.Context) string {
	if v, _ := ctx.Value(userIDKey{}).(string); v != "" {
		return v
	}
	return "system"
}

// Attribution extracts the acting user for audit columns. Identity comes
// from the gateway in front of this service: a signed bearer token when
// jwtSecret is configured, or the X-User-ID header it sets after its own
// verification. Requests without identity proceed as "system"; access
// control itself is enforced upstream.
func (h *Handler) Attribution(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := ""

		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") && h.jwtSecret != "" {
			raw := strings.TrimPrefix(auth, "Bearer ")
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(h.jwtSecret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}
			userID = claims.Subject
		}

		if userID == "" {
			userID = strings.TrimSpace(r.Header.Get("X-User-ID"))
		}

		if userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID))
		}
		next.ServeHTTP(w, r)
	})
}
