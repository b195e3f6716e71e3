package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mesa-qr-orders/services"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

const principalKey = "principal"

func principalFromToken(jwt *utils.JWTManager, tokenString string) (*services.Principal, error) {
	claims, err := jwt.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &services.Principal{
		UserID:   claims.UserID,
		Role:     claims.Role,
		OrgID:    claims.OrgID,
		BranchID: claims.BranchID,
	}, nil
}

func setPrincipal(c *gin.Context, p *services.Principal) {
	c.Set(principalKey, p)
	c.Set("userID", p.UserID)
	c.Set("role", p.Role)
}

// GetPrincipal returns nil for anonymous requests.
func GetPrincipal(c *gin.Context) *services.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*services.Principal)
	return p
}

func AuthMiddleware(jwt *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Authorization header missing"))
			c.Abort()
			return
		}

		p, err := principalFromToken(jwt, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Invalid or expired token"))
			c.Abort()
			return
		}

		setPrincipal(c, p)
		c.Next()
	}
}

// OptionalAuth lets anonymous customers through; a header that is present must still be valid.
func OptionalAuth(jwt *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		p, err := principalFromToken(jwt, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Invalid or expired token"))
			c.Abort()
			return
		}

		setPrincipal(c, p)
		c.Next()
	}
}
