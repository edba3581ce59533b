package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"creatorhub/utils"
)

// RevokeTokenHandler revokes the bearer token of the current request until it
// would have expired.
func RevokeTokenHandler(store utils.RevocationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			utils.JSONError(c, http.StatusServiceUnavailable, "revocation unavailable", "no revocation store configured")
			return
		}
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		_, _, exp, err := utils.ExtractSubjectAndRole(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Insufficient authorization", "code": 0})
			return
		}
		ttl := time.Until(exp)
		if exp.IsZero() {
			ttl = 24 * time.Hour
		}
		if err := store.Revoke(c.Request.Context(), utils.HashToken(token), ttl); err != nil {
			getLogger(c).Error("failed to revoke token", zap.Error(err))
			utils.JSONError(c, http.StatusInternalServerError, "failed to revoke token", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
	}
}
