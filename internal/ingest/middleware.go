package ingest

import (
	"crypto/subtle"
	"net/http"

	"leadrouter_backend/platform/config"

	"github.com/gin-gonic/gin"
)

const webhookSecretHeader = "X-Webhook-Secret"

// WebhookAuth guards the public webhook endpoints with the tenant-agnostic
// shared secret. Deployments without a configured secret reject all webhook
// traffic rather than accepting everything.
func WebhookAuth(cfg config.IngestConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := cfg.GetWebhookSharedSecret()
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "webhook ingestion not configured"})
			return
		}

		provided := c.GetHeader(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
		c.Next()
	}
}
