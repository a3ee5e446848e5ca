package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/pkg/utils"
)

// DevOwnerHeader carries the owner id when no signing secret is configured.
const DevOwnerHeader = "X-User-ID"

type ownerKey struct{}

// Claims are the fields we read from tokens issued by the account service.
type Claims struct {
	jwt.RegisteredClaims
	ID string `json:"id"`
}

// WithOwner returns a context carrying the authenticated owner id.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the owner id set by Auth.
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}

// Auth 校验请求令牌并把用户 ID 放入 context。
// 令牌优先从 cookie 读取，其次是 Authorization: Bearer 头。
// secret 为空时进入开发模式，直接信任 X-User-ID 头。
func Auth(secret, cookieName string, log logrus.FieldLogger) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				owner := strings.TrimSpace(r.Header.Get(DevOwnerHeader))
				if owner == "" {
					utils.RespondError(w, http.StatusUnauthorized, "authentication required")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
				return
			}

			raw := tokenFromRequest(r, cookieName)
			if raw == "" {
				utils.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			owner, err := ParseOwner(raw, key)
			if err != nil {
				log.WithError(err).Debug("rejecting token")
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

// ParseOwner validates an HS256 token and returns its owner id.
func ParseOwner(raw string, key []byte) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	owner := claims.ID
	if owner == "" {
		owner = claims.Subject
	}
	if owner == "" {
		return "", fmt.Errorf("token carries no user id")
	}
	return owner, nil
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
