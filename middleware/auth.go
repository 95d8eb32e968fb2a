package middleware

import (
	"net/http"
	"strings"

	"atpkiosk/utils"

	"github.com/gin-gonic/gin"
)

// RendererAuthMiddleware admits only requests carrying a renderer token
// signed with secret. The token comes from the Authorization header or,
// for EventSource clients that cannot set headers, the "token" query
// parameter. An empty secret disables the check.
func RendererAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		tokenString := ""
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{Message: "Missing or invalid Authorization header"})
			return
		}

		subject, err := utils.ExtractSubject(secret, tokenString)
		if err != nil || subject != utils.RendererSubject {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{Message: "Invalid token"})
			return
		}

		c.Set("subject", subject)
		c.Next()
	}
}
