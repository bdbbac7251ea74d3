package middlewares

import (
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CustomErrorLogger logs c.Errors once the request has been handled.
func CustomErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			ctx := c.Request.Context()
			cid, _ := utils.GetCorrelationIdFromContext(ctx)
			userId, _ := utils.GetUserIdFromContext(ctx)
			username, _ := utils.GetUsernameFromContext(ctx)
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
				"user_id":        userId,
				"username":       username,
			}).Error(c.Errors.String())
		}
	}
}
