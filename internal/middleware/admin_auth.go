package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plgshop/internal/constants"
)

// AdminChecker 管理员名单
type AdminChecker interface {
	IsAdmin(email string) bool
}

// AdminAuth 管理员认证中间件，需放在UserAuth之后
func AdminAuth(admins AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !admins.IsAdmin(c.GetString(ContextEmail)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": 403, "msg": constants.ErrInsufficientPermission})
			return
		}
		c.Next()
	}
}
