package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		if !allowed[p.Role] {
			utils.RespondError(c, http.StatusForbidden, fmt.Errorf("role %s is not allowed here", p.Role))
			c.Abort()
			return
		}

		c.Next()
	}
}
