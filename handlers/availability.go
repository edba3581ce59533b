package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"creatorhub/middleware"
	"creatorhub/models"
	"creatorhub/services/availability"
	"creatorhub/utils"
)

// AvailabilityHandler serves creator calendars and booking claims.
type AvailabilityHandler struct {
	Service availability.AvailabilityService
}

func actorOrAbort(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Insufficient authorization", "code": 0})
	}
	return actor, ok
}

// parseRange reads RFC 3339 "start" and "end" query parameters.
func parseRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid start", "start must be an RFC 3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid end", "end must be an RFC 3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// GetAvailability handles GET /api/creators/:creatorId/availability?start&end&duration.
// duration is in minutes. Conflict details are shown to the creator and admins only.
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	start, end, ok := parseRange(c)
	if !ok {
		return
	}
	var duration time.Duration
	if raw := c.Query("duration"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			utils.JSONError(c, http.StatusBadRequest, "invalid duration", "duration must be a positive number of minutes")
			return
		}
		duration = time.Duration(minutes) * time.Minute
	}

	res, err := h.Service.GenerateAvailableSlots(c.Request.Context(), availability.SlotQuery{
		CreatorID:  c.Param("creatorId"),
		RangeStart: start,
		RangeEnd:   end,
		Duration:   duration,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !canSeeDetails(c) {
		res = redactAvailability(res)
	}
	c.JSON(http.StatusOK, res)
}

// CheckSlot handles GET /api/creators/:creatorId/availability/check?start&end.
func (h *AvailabilityHandler) CheckSlot(c *gin.Context) {
	start, end, ok := parseRange(c)
	if !ok {
		return
	}
	res, err := h.Service.IsSlotAvailable(c.Request.Context(), c.Param("creatorId"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	if !canSeeDetails(c) {
		res.Conflicts = redactConflicts(res.Conflicts)
	}
	c.JSON(http.StatusOK, res)
}

func (h *AvailabilityHandler) GetRule(c *gin.Context) {
	rule, err := h.Service.GetRule(c.Request.Context(), c.Param("creatorId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// SaveRule handles PUT /api/creators/:creatorId/rule. The path decides the creator.
func (h *AvailabilityHandler) SaveRule(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var rule models.AvailabilityRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	rule.CreatorID = c.Param("creatorId")

	saved, err := h.Service.SaveRule(c.Request.Context(), actor, rule)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// ListBlackouts handles GET .../blackouts?from&to (YYYY-MM-DD). The default
// window is today through 90 days ahead.
func (h *AvailabilityHandler) ListBlackouts(c *gin.Context) {
	today := time.Now().UTC()
	from := c.DefaultQuery("from", today.Format("2006-01-02"))
	to := c.DefaultQuery("to", today.AddDate(0, 0, 90).Format("2006-01-02"))

	list, err := h.Service.ListExceptions(c.Request.Context(), c.Param("creatorId"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blackouts": list})
}

func (h *AvailabilityHandler) AddBlackout(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var in models.BlackoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	in.CreatorID = c.Param("creatorId")

	exc, err := h.Service.AddBlackoutDate(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exc)
}

func (h *AvailabilityHandler) RemoveBlackout(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.Service.RemoveBlackout(c.Request.Context(), actor, c.Param("creatorId"), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type blockRequest struct {
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
	Reason    string    `json:"reason"`
}

// BlockTime handles POST .../blocks.
func (h *AvailabilityHandler) BlockTime(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	id, err := h.Service.BlockTimeSlot(c.Request.Context(), actor, c.Param("creatorId"), req.StartTime, req.EndTime, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type claimRequest struct {
	StartTime        time.Time `json:"startTime" binding:"required"`
	EndTime          time.Time `json:"endTime" binding:"required"`
	ExcludeBookingID string    `json:"excludeBookingId"`
}

// ClaimBooking handles POST /api/creators/:creatorId/bookings. The caller is
// the client of the booking.
func (h *AvailabilityHandler) ClaimBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	booking, err := h.Service.Claim(c.Request.Context(), models.ClaimRequest{
		CreatorID:        c.Param("creatorId"),
		ClientID:         actor.ID,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		ExcludeBookingID: req.ExcludeBookingID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	getLogger(c).Info("booking claimed", zap.String("bookingId", booking.ID), zap.String("clientId", actor.ID))
	c.JSON(http.StatusCreated, booking)
}

// CancelBooking handles DELETE /api/bookings/:bookingId.
func (h *AvailabilityHandler) CancelBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.Service.CancelBooking(c.Request.Context(), actor, c.Param("bookingId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ConnectCalendar handles POST .../calendars.
func (h *AvailabilityHandler) ConnectCalendar(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var conn models.CalendarConnection
	if err := c.ShouldBindJSON(&conn); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	conn.CreatorID = c.Param("creatorId")

	saved, err := h.Service.ConnectCalendar(c.Request.Context(), actor, conn)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *AvailabilityHandler) ListCalendars(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	conns, err := h.Service.ListConnections(c.Request.Context(), actor, c.Param("creatorId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calendars": conns})
}
