package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/response"
)

// RequireRole lets the request through only for the given role. Must run after RequireJWT.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if claims.Role == role {
			c.Next()
			return
		}

		switch role {
		case model.RoleStudent:
			response.AbortFail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
		case model.RoleAdmin:
			response.AbortFail(c, http.StatusForbidden, response.ErrAdminAccessOnly)
		default:
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
		}
	}
}

// RequireStudent is RequireRole(model.RoleStudent).
func RequireStudent() gin.HandlerFunc { return RequireRole(model.RoleStudent) }

// RequireAdmin is RequireRole(model.RoleAdmin).
func RequireAdmin() gin.HandlerFunc { return RequireRole(model.RoleAdmin) }
