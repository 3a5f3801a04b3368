package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"residence-billing-backend/internal/billing"
)

type assignBedRequest struct {
	BedID int64 `json:"bedId" binding:"required"`
}

// AssignBed handles POST /api/occupants/{occupant_id}/bed. A first bed or a
// move to another room type bills the occupant; a billing failure after the
// bed was claimed is reported alongside the assignment.
func (h *Handler) AssignBed(c *gin.Context) {
	occupantID, ok := pathID(c, "occupant_id")
	if !ok {
		return
	}
	var req assignBedRequest
	if !bindJSON(c, &req) || !h.requireApprover(c) {
		return
	}

	result, err := h.svc.AssignBed(c.Request.Context(), occupantID, req.BedID)
	if result == nil {
		h.abortWithError(c, err)
		return
	}

	resp := bedAssignmentResponse{
		Bed:       newBedResponse(result.Bed),
		Unchanged: result.Unchanged,
		Trigger:   result.Trigger,
		Billing:   newBillingReportResponse(result.Billing),
	}
	if result.Previous != nil {
		prev := newBedResponse(*result.Previous)
		resp.PreviousBed = &prev
	}

	status := http.StatusOK
	if err != nil {
		h.log.WithError(err).WithField("occupant_id", occupantID).Warn("Bed assigned but billing failed")
		status = http.StatusAccepted
		c.JSON(status, gin.H{"assignment": resp, "error": err.Error()})
		return
	}
	if !result.Unchanged {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// ReleaseBed handles DELETE /api/occupants/{occupant_id}/bed.
func (h *Handler) ReleaseBed(c *gin.Context) {
	occupantID, ok := pathID(c, "occupant_id")
	if !ok || !h.requireApprover(c) {
		return
	}

	bed, err := h.svc.ReleaseBed(c.Request.Context(), occupantID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if bed == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, newBedResponse(*bed))
}

// TriggerEvent handles POST /api/occupants/{occupant_id}/events/{trigger}.
// Only lifecycle triggers are accepted here; calendar triggers go through
// the admin endpoint.
func (h *Handler) TriggerEvent(c *gin.Context) {
	occupantID, ok := pathID(c, "occupant_id")
	if !ok || !h.requireApprover(c) {
		return
	}
	trigger, err := billing.ParseTrigger(c.Param("trigger"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	report, err := h.svc.TriggerLifecycleEvent(c.Request.Context(), occupantID, trigger)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBillingReportResponse(report))
}

// GetAccess handles GET /api/occupants/{occupant_id}/access.
func (h *Handler) GetAccess(c *gin.Context) {
	occupantID, ok := pathID(c, "occupant_id")
	if !ok {
		return
	}

	allowed, err := h.svc.CanAccessDormitory(c.Request.Context(), occupantID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"occupantId": occupantID, "canAccess": allowed})
}
