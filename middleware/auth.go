package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"creatorhub/models"
	"creatorhub/utils"
)

const (
	ActorKey     = "actor"
	TokenHashKey = "tokenHash"
)

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "Insufficient authorization",
		"code":  0,
	})
}

// JWTAuthMiddleware accepts HS256 bearer tokens carrying "sub" and "role" and
// stores the caller as a models.Actor. A revocation store error is logged and
// treated as not revoked.
func JWTAuthMiddleware(revocations utils.RevocationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			abortUnauthorized(c)
			return
		}

		sub, role, _, err := utils.ExtractSubjectAndRole(tokenString)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		switch role {
		case models.RoleCreator, models.RoleClient, models.RoleAdmin:
		default:
			abortUnauthorized(c)
			return
		}

		hash := utils.HashToken(tokenString)
		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.Request.Context(), hash)
			if err != nil {
				zap.L().Warn("revocation check failed, allowing token", zap.Error(err))
			} else if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Token revoked",
					"code":  0,
				})
				return
			}
		}

		c.Set(ActorKey, models.Actor{ID: sub, Role: role})
		c.Set(TokenHashKey, hash)
		c.Next()
	}
}

// ActorFrom returns the authenticated caller set by JWTAuthMiddleware.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
