package handlers

import (
	"creatorhub/services/availability"
	"creatorhub/utils"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	Revocations utils.RevocationStore

	// Availability endpoints
	GetAvailabilityHandler gin.HandlerFunc
	CheckSlotHandler       gin.HandlerFunc
	GetRuleHandler         gin.HandlerFunc
	SaveRuleHandler        gin.HandlerFunc
	ListBlackoutsHandler   gin.HandlerFunc
	AddBlackoutHandler     gin.HandlerFunc
	RemoveBlackoutHandler  gin.HandlerFunc
	BlockTimeHandler       gin.HandlerFunc
	ConnectCalendarHandler gin.HandlerFunc
	ListCalendarsHandler   gin.HandlerFunc

	// Booking endpoints
	ClaimBookingHandler  gin.HandlerFunc
	CancelBookingHandler gin.HandlerFunc

	// Auth endpoints
	RevokeTokenHandler gin.HandlerFunc

	HealthHandler gin.HandlerFunc
}

// NewHandlerBundle wires every handler to its service.
func NewHandlerBundle(svc availability.AvailabilityService, revocations utils.RevocationStore) *HandlerBundle {
	h := &AvailabilityHandler{Service: svc}
	return &HandlerBundle{
		Revocations: revocations,

		GetAvailabilityHandler: h.GetAvailability,
		CheckSlotHandler:       h.CheckSlot,
		GetRuleHandler:         h.GetRule,
		SaveRuleHandler:        h.SaveRule,
		ListBlackoutsHandler:   h.ListBlackouts,
		AddBlackoutHandler:     h.AddBlackout,
		RemoveBlackoutHandler:  h.RemoveBlackout,
		BlockTimeHandler:       h.BlockTime,
		ConnectCalendarHandler: h.ConnectCalendar,
		ListCalendarsHandler:   h.ListCalendars,

		ClaimBookingHandler:  h.ClaimBooking,
		CancelBookingHandler: h.CancelBooking,

		RevokeTokenHandler: RevokeTokenHandler(revocations),
		HealthHandler:      HealthHandler,
	}
}
