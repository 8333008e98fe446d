package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/token"
	"github.com/xevcp/backend/pkg/logger"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	roleKey   contextKey = "role"
	tokenKey  contextKey = "token"
)

// BlacklistKey is the Redis key marking a logged-out token.
func BlacklistKey(tokenString string) string {
	return "blacklist:" + tokenString
}

type Auth struct {
	tokens *token.Manager
	redis  *redis.Client
}

// NewAuth builds the auth middleware. rdb may be nil, in which case logged
// out tokens stay valid until they expire.
func NewAuth(tokens *token.Manager, rdb *redis.Client) *Auth {
	return &Auth{tokens: tokens, redis: rdb}
}

// Required rejects requests without a valid bearer token.
func (a *Auth) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		ctx, err := a.authenticate(r.Context(), authHeader)
		if err != nil {
			logger.FromContext(r.Context()).Info("rejected token", "error", err)
			writeError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the caller's identity when a valid token is present and
// otherwise lets the request through anonymously.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			if ctx, err := a.authenticate(r.Context(), authHeader); err == nil {
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Auth) authenticate(ctx context.Context, authHeader string) (context.Context, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, token.ErrInvalid
	}
	tokenString := parts[1]

	claims, err := a.tokens.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	if a.redis != nil {
		n, err := a.redis.Exists(ctx, BlacklistKey(tokenString)).Result()
		if err != nil {
			logger.FromContext(ctx).Warn("token blacklist lookup failed", "error", err)
		} else if n > 0 {
			return nil, token.ErrInvalid
		}
	}

	ctx = context.WithValue(ctx, tokenKey, claims)
	return WithUser(ctx, claims.UserID, claims.Role), nil
}

// RequireRole allows only callers holding one of roles. It must run after
// Auth.Required.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := Role(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// WithUser returns a context carrying the caller's identity.
func WithUser(ctx context.Context, userID string, role models.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func Role(ctx context.Context) models.Role {
	role, _ := ctx.Value(roleKey).(models.Role)
	return role
}

// Claims returns the verified token claims of the request, if any.
func Claims(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(tokenKey).(*token.Claims)
	return c, ok
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
