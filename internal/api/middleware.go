package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dfs-go/internal/auth"
	"dfs-go/internal/dfs"
)

const (
	ctxUserID = "user_id"
	ctxToken  = "session_token"
)

// RequireSession authenticates the bearer token and stores the user id in the context.
func RequireSession(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   errorBody{Code: "UNAUTHORIZED", Message: "Authorization header missing or malformed"},
			})
			return
		}

		user, err := svc.Authenticate(token)
		if err != nil {
			status, code := classify(err)
			c.AbortWithStatusJSON(status, gin.H{
				"success": false,
				"error":   errorBody{Code: code, Message: err.Error()},
			})
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// RequestLogger logs every request after it is served.
func RequestLogger(logger dfs.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"user", c.GetInt64(ctxUserID),
		)
	}
}
