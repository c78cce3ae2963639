package routes

import (
	"net/http"

	"fitbook/handlers"
	"fitbook/middleware"
	"fitbook/models"
	"fitbook/utils"

	"github.com/gin-gonic/gin"
)

// RegisterBookingRoutes registers the booking lifecycle endpoints.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/bookings")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.POST("", hb.RequestBookingHandler)
		api.GET("/:id", hb.GetBookingHandler)
		api.POST("/:id/transition", hb.TransitionBookingHandler)
	}
}

// RegisterTrainerRoutes registers availability resolution and rule
// management endpoints.
func RegisterTrainerRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/trainers")
	{
		// Availability resolution is readable by any authenticated actor.
		api.GET("/:id/availability", middleware.JWTAuthMiddleware(), hb.ResolveAvailabilityHandler)

		// Rule management is for trainers and ranked admins.
		rules := api.Group("/:id/rules")
		rules.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole(models.RoleTrainer, models.RoleAdmin))
		rules.GET("", hb.ListRulesHandler)
		rules.POST("", hb.CreateRuleHandler)
		rules.PUT("/:ruleID", hb.UpdateRuleHandler)
		rules.DELETE("/:ruleID", hb.DeactivateRuleHandler)
	}
}

// RegisterWebhookRoutes registers provider callbacks. These authenticate by
// signature or shared secret, not by bearer token.
func RegisterWebhookRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.POST("/api/webhooks/payment", hb.StripeWebhookHandler)
	r.POST("/api/calendar/sync-result/:bookingID", hb.CalendarSyncResultHandler)
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "services": status})
	})
}
