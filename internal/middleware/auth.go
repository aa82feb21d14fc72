package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/collabify/cachekit/internal/config"
)

type contextKey string

const UserIDKey contextKey = "userID"

// AuthMiddleware accepts HS256 bearer tokens signed with JWT_SECRET that carry
// a subject and an expiry. The issuer is checked only when JWT_ISSUER is set.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(cfg.JWTSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				http.Error(w, "Unauthorized: Authentication not configured", http.StatusUnauthorized)
				return
			}

			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Unauthorized: Missing or malformed Authorization header", http.StatusUnauthorized)
				return
			}

			var claims jwt.RegisteredClaims
			_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil {
				slog.DebugContext(r.Context(), "Rejected bearer token", "error", err)
				http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				http.Error(w, "Unauthorized: Missing sub claim", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

// GetUserID extracts the user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}
