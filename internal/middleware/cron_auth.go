package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-escalation-engine/internal/constants"
	apierrors "github.com/yukikurage/task-escalation-engine/internal/errors"
)

// RequireCronSecret guards the batch trigger endpoints with a shared secret,
// read from the X-Cron-Secret header or the secret query parameter. Without
// a configured secret the triggers are unavailable.
func RequireCronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			apierrors.ServiceUnavailable(c, "Cron trigger is not configured")
			c.Abort()
			return
		}

		provided := c.GetHeader(constants.CronSecretHeader)
		if provided == "" {
			provided = c.Query(constants.CronSecretQuery)
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			apierrors.Unauthorized(c, "Invalid cron secret")
			c.Abort()
			return
		}

		c.Next()
	}
}
