package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/securenote/internal/domain"
	"github.com/smallbiznis/securenote/internal/service"
)

const currentUserKey = "currentUser"

// Auth validates the Authorization header and attaches the resolved user.
type Auth struct {
	Auth *service.AuthService
}

// RequireUser ensures the request carries a valid bearer access token.
func (m *Auth) RequireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortUnauthorized(c, "Authorization header required.")
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		abortUnauthorized(c, "Bearer token required.")
		return
	}

	user, err := m.Auth.ValidateAccess(c.Request.Context(), parts[1])
	if err != nil {
		svcErr := service.AsError(err)
		if svcErr.Status == http.StatusUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}
		c.AbortWithStatusJSON(svcErr.Status, gin.H{"error": svcErr.Code, "error_description": svcErr.Description})
		return
	}

	c.Set(currentUserKey, user)
	c.Next()
}

// GetCurrentUser exposes the authenticated user to handlers.
func GetCurrentUser(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}

func abortUnauthorized(c *gin.Context, desc string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": desc})
}
