package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const identityKey ctxKey = iota

// Identity is the caller as asserted by the upstream identity provider.
type Identity struct {
	UserID string
	Email  string
	City   string
}

// IdentityFrom returns the identity attached by JWTMiddleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// JWTMiddleware verifies an HS256 bearer token signed with secret and attaches
// the caller's Identity to the request context. The user id is read from "sub",
// falling back to "user_id".
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				unauthorized(w, "Missing Authorization header")
				return
			}

			tokenStr := strings.TrimPrefix(auth, "Bearer ")
			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, "Unauthorized")
				return
			}

			id := identityFromClaims(claims)
			if id.UserID == "" {
				unauthorized(w, "invalid token claims")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func identityFromClaims(claims jwt.MapClaims) Identity {
	var id Identity
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id.UserID = sub
	} else if uid, ok := claims["user_id"].(string); ok {
		id.UserID = uid
	}
	id.Email, _ = claims["email"].(string)
	if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
		id.City, _ = meta["city"].(string)
	}
	return id
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
