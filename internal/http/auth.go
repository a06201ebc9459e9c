package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token payload. Tokens are issued elsewhere and signed
// with the shared HS256 secret.
type Claims struct {
	UserID int64      `json:"user_id"`
	Name   string     `json:"name"`
	Role   authz.Role `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey int

const actorKey ctxKey = iota

// Authenticate rejects requests without a valid bearer token and stores the
// caller as an authz.Actor on the request context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "authorization header is required")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "authorization must be 'Bearer <token>'")
				return
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.UserID <= 0 || claims.Role == "" {
				writeError(w, http.StatusUnauthorized, "token lacks user_id or role")
				return
			}

			actor := authz.Actor{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

// actorFrom returns the authenticated caller, or the zero Actor which every
// capability check denies.
func actorFrom(ctx context.Context) authz.Actor {
	actor, _ := ctx.Value(actorKey).(authz.Actor)
	return actor
}
