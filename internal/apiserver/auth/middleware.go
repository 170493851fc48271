package auth

import (
	"log"
	"net/http"
	"strings"

	"workerbee/internal/apiserver/httpx"
)

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/auth/register",
	"/auth/login",
	"/health",
	"/metrics",
	"/ws/",
}

func isPublicRoute(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware 创建 JWT 认证中间件
//
// 三种 401 文案相互可区分，客户端据此决定是补头、清缓存还是重新登录：
//   - "missing authorization header"
//   - "invalid token"
//   - "token expired"
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, err := ParseToken(cfg, parts[1])
			if err != nil {
				if err == ErrTokenExpired {
					httpx.WriteError(w, http.StatusUnauthorized, "token expired")
					return
				}
				log.Printf("[auth] token parse error: %v", err)
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user := &AuthUser{
				ID:       claims.Subject,
				Username: claims.Username,
				Email:    claims.Email,
			}
			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), user)))
		})
	}
}
