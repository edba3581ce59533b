package handlers

import (
	"github.com/gin-gonic/gin"

	"creatorhub/middleware"
	"creatorhub/models"
)

// canSeeDetails reports whether the caller manages the creator in the path.
func canSeeDetails(c *gin.Context) bool {
	actor, ok := middleware.ActorFrom(c)
	return ok && actor.CanManage(c.Param("creatorId"))
}

// redactConflicts hides booking ids, manual block labels and provider error
// text from callers who do not manage the calendar. The kind and interval
// stay visible.
func redactConflicts(conflicts []models.ConflictDescriptor) []models.ConflictDescriptor {
	if conflicts == nil {
		return nil
	}
	out := make([]models.ConflictDescriptor, len(conflicts))
	for i, cd := range conflicts {
		cd.BookingID = ""
		switch cd.Kind {
		case models.ConflictManualBlock, models.ConflictProviderCheckFailed:
			cd.Detail = ""
		}
		out[i] = cd
	}
	return out
}

func redactAvailability(res *models.Availability) *models.Availability {
	out := *res
	out.Slots = make([]models.AvailableSlot, len(res.Slots))
	for i, slot := range res.Slots {
		slot.Conflicts = redactConflicts(slot.Conflicts)
		out.Slots[i] = slot
	}
	return &out
}
