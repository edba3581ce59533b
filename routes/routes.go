package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"creatorhub/handlers"
	"creatorhub/middleware"
	"creatorhub/models"
	"creatorhub/utils"
)

// RegisterAvailabilityRoutes registers the calendar and booking endpoints.
// Every route needs a bearer token; ownership checks happen in the service.
func RegisterAvailabilityRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api")
	api.Use(middleware.JWTAuthMiddleware(hb.Revocations))

	creators := api.Group("/creators/:creatorId")
	{
		creators.GET("/availability", hb.GetAvailabilityHandler)
		creators.GET("/availability/check", hb.CheckSlotHandler)

		creators.GET("/rule", hb.GetRuleHandler)
		creators.GET("/blackouts", hb.ListBlackoutsHandler)

		// Creator-managed calendar state.
		manage := creators.Group("")
		manage.Use(middleware.RequireRole(models.RoleCreator, models.RoleAdmin))
		manage.PUT("/rule", hb.SaveRuleHandler)
		manage.POST("/blackouts", hb.AddBlackoutHandler)
		manage.DELETE("/blackouts/:id", hb.RemoveBlackoutHandler)
		manage.POST("/blocks", hb.BlockTimeHandler)
		manage.POST("/calendars", hb.ConnectCalendarHandler)
		manage.GET("/calendars", hb.ListCalendarsHandler)

		creators.POST("/bookings", middleware.RequireRole(models.RoleClient), hb.ClaimBookingHandler)
	}

	api.DELETE("/bookings/:bookingId", hb.CancelBookingHandler)
	api.POST("/auth/revoke", hb.RevokeTokenHandler)
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, logger *zap.Logger, requestsPerMin int) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(utils.ErrorHandler())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RateLimitMiddleware(requestsPerMin))

	RegisterHealthRoute(r, hb)
	RegisterAvailabilityRoutes(r, hb)
}
