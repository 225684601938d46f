// permission.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"returns-reconciliation-service/internal/service"
)

// RequirePermission lets the request through only when the operator holds perm.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := service.AuthUser{Permissions: c.GetStringSlice("userPermissions")}
		if !user.HasPermission(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": perm + " permission required"})
			return
		}
		c.Next()
	}
}
