package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

// WebSocketAuthMiddleware reads the staff JWT from ?token=.
func WebSocketAuthMiddleware(jwt *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(401)
			return
		}

		p, err := principalFromToken(jwt, token)
		if err != nil {
			c.AbortWithStatus(401)
			return
		}

		setPrincipal(c, p)
		c.Next()
	}
}
