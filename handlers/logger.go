package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"creatorhub/utils"
)

func getLogger(c *gin.Context) *zap.Logger {
	return utils.RequestLogger(c)
}
