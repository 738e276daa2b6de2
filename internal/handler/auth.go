package handler

import (
	"errors"
	"net/http"
	"strings"

	"yieldpilot/internal/domain"

	"github.com/gin-gonic/gin"
)

const userContextKey = "yieldpilot.user"

// RequireAuth resolves the bearer token to a user and stores it in the gin
// context for downstream handlers.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" || !strings.HasPrefix(raw, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		user, err := h.identity.Resolve(c.Request.Context(), token)
		if err != nil || user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userContextKey, *user)
		c.Next()
	}
}

func currentUser(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := v.(domain.User)
	return user, ok
}

// denyEntitlement renders a tier or quota denial as a 403 with enough fields
// for the client to show an upgrade prompt. Unexpected errors become a 500.
func denyEntitlement(c *gin.Context, err error) {
	var entErr *domain.EntitlementError
	if !errors.As(err, &entErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payload := gin.H{
		"error":         entErr.Error(),
		"required_plan": entErr.RequiredTier,
		"current_plan":  entErr.CurrentTier,
	}
	if entErr.Limit > 0 {
		payload["limit"] = entErr.Limit
		payload["used"] = entErr.Used
	}
	c.JSON(http.StatusForbidden, payload)
}
