package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plgshop/internal/auth"
	"plgshop/internal/constants"
)

// 上下文键
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

// TokenParser 解析登录凭证
type TokenParser interface {
	Parse(token string) (*auth.Identity, error)
}

// UserAuth 用户认证中间件，从Cookie读取JWT
func UserAuth(tokens TokenParser, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": constants.ErrUnauthorized})
			return
		}

		identity, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": constants.ErrInvalidToken})
			return
		}

		// 将用户ID和邮箱存储到上下文中，供后续处理使用
		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextEmail, identity.Email)
		c.Next()
	}
}

// UserID 当前登录用户
func UserID(c *gin.Context) int64 {
	return c.GetInt64(ContextUserID)
}
