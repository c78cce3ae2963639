package handlers

import (
	"errors"
	"net/http"
	"time"

	availabilityRepo "fitbook/database/repository/availability"
	"fitbook/middleware"
	"fitbook/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResolveAvailabilityHandler returns the trainer's bookable windows in the
// requested range, annotated with remaining capacity.
func (hb *HandlerBundle) ResolveAvailabilityHandler(c *gin.Context) {
	trainerID := c.Param("id")

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' query param, expected RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' query param, expected RFC3339"})
		return
	}
	if !to.After(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'to' must be after 'from'"})
		return
	}

	windows, err := hb.Engine.ResolveAvailability(c.Request.Context(), trainerID, from, to)
	if err != nil {
		getLogger(c).Error("availability resolution failed",
			zap.String("trainerID", trainerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trainerId": trainerID, "windows": windows})
}

// mayEditRules reports whether the actor owns the trainer's schedule or is
// an admin ranked for availability edits.
func mayEditRules(c *gin.Context, trainerID string) bool {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return false
	}
	if actor.Role == models.RoleTrainer && actor.ID == trainerID {
		return true
	}
	return actor.Role == models.RoleAdmin && actor.AdminRank.Has(models.CapEditAvailability)
}

// ListRulesHandler returns a trainer's active availability rules.
func (hb *HandlerBundle) ListRulesHandler(c *gin.Context) {
	trainerID := c.Param("id")
	if !mayEditRules(c, trainerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to view this trainer's rules"})
		return
	}

	rules, err := hb.AvailabilityRepo.ListActiveByTrainer(c.Request.Context(), trainerID)
	if err != nil {
		getLogger(c).Error("failed to list availability rules", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// CreateRuleHandler adds a new availability rule for the trainer.
func (hb *HandlerBundle) CreateRuleHandler(c *gin.Context) {
	trainerID := c.Param("id")
	if !mayEditRules(c, trainerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to edit this trainer's rules"})
		return
	}

	var rule models.AvailabilityRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	rule.TrainerID = trainerID
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := hb.AvailabilityRepo.Create(c.Request.Context(), &rule); err != nil {
		getLogger(c).Error("failed to create availability rule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// UpdateRuleHandler replaces an existing rule. Future bookings made under
// the old version keep their slots; only new requests see the change.
func (hb *HandlerBundle) UpdateRuleHandler(c *gin.Context) {
	trainerID := c.Param("id")
	if !mayEditRules(c, trainerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to edit this trainer's rules"})
		return
	}

	var rule models.AvailabilityRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	rule.ID = c.Param("ruleID")
	rule.TrainerID = trainerID
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := hb.AvailabilityRepo.Update(c.Request.Context(), &rule); err != nil {
		if errors.Is(err, availabilityRepo.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		getLogger(c).Error("failed to update availability rule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeactivateRuleHandler soft-removes a rule from future resolution.
func (hb *HandlerBundle) DeactivateRuleHandler(c *gin.Context) {
	trainerID := c.Param("id")
	if !mayEditRules(c, trainerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to edit this trainer's rules"})
		return
	}

	if err := hb.AvailabilityRepo.Deactivate(c.Request.Context(), c.Param("ruleID")); err != nil {
		if errors.Is(err, availabilityRepo.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		getLogger(c).Error("failed to deactivate availability rule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
