package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/config"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SessionMiddleware resolves the "token" header to a username stored under
// "Token:{token}" in redis. Without a redis client the header is ignored.
func SessionMiddleware(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" || rdb == nil {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue(c.Request.Context(), rdb, "Token:"+token)
		if err != nil || !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": false, "message": "unauthorized"})
			return
		}

		ctx := utils.SetUsernameInContext(c.Request.Context(), username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
