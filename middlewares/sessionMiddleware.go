package middlewares

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/gin-gonic/gin"
)

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
		ctx = context.WithValue(ctx, utils.ContextKeyUsername, username)

		if user, err := models.GetUserByUsername(ctx, username); err == nil {
			ctx = utils.SetUserIdInContext(ctx, user.ID)
			ctx = utils.SetChatIdInContext(ctx, user.ChatId)
			isManager := user.Role == models.UserRoleManager || user.Role == models.UserRoleAdmin
			ctx = utils.SetIsManagerInContext(ctx, isManager)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession rejects requests that did not resolve to a username.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
