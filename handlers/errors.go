package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"creatorhub/services/availability"
	"creatorhub/utils"
)

// respondError maps service errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	var invalid *availability.ValidationError
	var unavailable *availability.SlotUnavailableError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"message": "validation failed", "fields": invalid.Fields})
	case errors.As(err, &unavailable):
		status := http.StatusConflict
		if errors.Is(err, availability.ErrProviderUnavailable) {
			status = http.StatusServiceUnavailable
		}
		conflicts := unavailable.Conflicts
		if !canSeeDetails(c) {
			conflicts = redactConflicts(conflicts)
		}
		c.JSON(status, gin.H{"message": unavailable.Error(), "conflicts": conflicts})
	case errors.Is(err, availability.ErrRuleNotFound), errors.Is(err, availability.ErrNotFound):
		utils.JSONError(c, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, availability.ErrForbidden):
		utils.JSONError(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, availability.ErrVersionConflict), errors.Is(err, availability.ErrClaimContended):
		utils.JSONError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, availability.ErrProviderUnavailable):
		utils.JSONError(c, http.StatusServiceUnavailable, "calendar provider unavailable", err.Error())
	default:
		getLogger(c).Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse{
			Message: "Internal Server Error",
			Details: "An unexpected error occurred. Please try again later.",
		})
	}
}
