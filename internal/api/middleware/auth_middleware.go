package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rev2018/placement-tracker/internal/auth"
	"github.com/rev2018/placement-tracker/internal/errcode"
)

// UserIDKey 是 gin.Context 中保存当前用户 ID 的键。
const UserIDKey = "userID"

type tokenValidator interface {
	ValidateToken(tokenString string) (*auth.TokenClaims, error)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": errcode.AuthenticationFailed})
}

// AuthMiddleware 校验访问令牌并将 userID 注入上下文。
func AuthMiddleware(validator tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		claims, err := validator.ValidateToken(parts[1])
		if err != nil || claims.TokenType != auth.TokenTypeAccess || claims.UserID == 0 {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID 读取 AuthMiddleware 写入的当前用户 ID。
func UserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
