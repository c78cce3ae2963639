package handlers

import (
	"errors"
	"net/http"
	"time"

	bookingRepo "fitbook/database/repository/booking"
	"fitbook/middleware"
	"fitbook/models"
	"fitbook/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type requestBookingInput struct {
	TrainerID     string    `json:"trainerId" binding:"required"`
	SessionTypeID string    `json:"sessionTypeId" binding:"required"`
	Start         time.Time `json:"start" binding:"required"`
	End           time.Time `json:"end" binding:"required"`
}

// RequestBookingHandler creates a pending booking for the authenticated
// client, subject to availability and capacity checks.
func (hb *HandlerBundle) RequestBookingHandler(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok || actor.Role != models.RoleClient {
		c.JSON(http.StatusForbidden, gin.H{"error": "only clients may request bookings"})
		return
	}

	var input requestBookingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	window, err := booking.NewWindow(input.Start, input.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := hb.Engine.RequestBooking(c.Request.Context(), actor.ID, input.TrainerID, input.SessionTypeID, window)
	if err != nil {
		writeBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, b)
}

type transitionInput struct {
	Action string `json:"action" binding:"required"`
	Reason string `json:"reason"`
}

// TransitionBookingHandler applies one lifecycle action to a booking on
// behalf of the authenticated actor.
func (hb *HandlerBundle) TransitionBookingHandler(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var input transitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	b, err := hb.Engine.Transition(c.Request.Context(), c.Param("id"),
		booking.Action(input.Action), actor, booking.TransitionMeta{Reason: input.Reason})
	if err != nil {
		writeBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// GetBookingHandler returns one booking. Clients and trainers only see
// their own; admins see any.
func (hb *HandlerBundle) GetBookingHandler(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	b, err := hb.Engine.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeBookingError(c, err)
		return
	}

	switch actor.Role {
	case models.RoleClient:
		if b.ClientID != actor.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
			return
		}
	case models.RoleTrainer:
		if b.TrainerID != actor.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your booking"})
			return
		}
	}

	c.JSON(http.StatusOK, b)
}

// writeBookingError maps engine errors onto HTTP responses.
func writeBookingError(c *gin.Context, err error) {
	if ce, ok := booking.AsConflict(err); ok {
		c.JSON(http.StatusConflict, gin.H{"error": ce.Message, "kind": string(ce.Kind)})
		return
	}

	var stale *booking.StaleTransitionError
	if errors.As(err, &stale) {
		c.JSON(http.StatusConflict, gin.H{"error": stale.Error(), "kind": string(booking.ConflictConflictingTransition)})
		return
	}

	var invalid *booking.InvalidTransitionError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Error()})
		return
	}

	switch {
	case errors.Is(err, booking.ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, bookingRepo.ErrBookingNotFound),
		errors.Is(err, bookingRepo.ErrSessionTypeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		getLogger(c).Error("booking request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
