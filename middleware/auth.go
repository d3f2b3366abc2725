package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/services"
)

type contextKey string

const (
	userIDContextKey contextKey = "user_id"
	roleContextKey   contextKey = "role"
)

// UserIDFromContext возвращает ID аутентифицированного пользователя.
func UserIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDContextKey).(int)
	return id, ok
}

// RoleFromContext возвращает роль аутентифицированного пользователя.
func RoleFromContext(ctx context.Context) (models.UserRole, bool) {
	role, ok := ctx.Value(roleContextKey).(models.UserRole)
	return role, ok
}

type Auth struct {
	authService *services.AuthService
}

func NewAuth(authService *services.AuthService) *Auth {
	return &Auth{authService: authService}
}

func (a *Auth) parseBearer(r *http.Request) (*services.Claims, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	claims, err := a.authService.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, false
	}
	return claims, true
}

// Authenticate требует валидный Bearer-токен и кладёт user_id и role в контекст.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := a.parseBearer(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
		ctx = context.WithValue(ctx, roleContextKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthenticate кладёт user_id в контекст, если токен есть и валиден,
// но пропускает и анонимов. Нужен публичным маршрутам, которые ведут себя
// по-разному для своих и чужих (счётчик просмотров).
func (a *Auth) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := a.parseBearer(r); ok {
			ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
			ctx = context.WithValue(ctx, roleContextKey, claims.Role)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// Authorize пропускает только пользователей с одной из перечисленных ролей.
// Ставится после Authenticate.
func Authorize(roles ...models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}
