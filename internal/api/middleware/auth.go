package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"slatrack/backend/pkg/jwt"
	"slatrack/backend/pkg/response"
)

// ServiceAuth 服务间认证中间件
// 从 Authorization: Bearer <token> 中提取并验证服务令牌，
// 调用方服务名注入上下文供审计字段使用
func ServiceAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		c.Set("service_name", claims.ServiceName)

		c.Next()
	}
}
