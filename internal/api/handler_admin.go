package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/billing"
)

// RunCalendarTrigger handles POST /api/admin/calendar/{trigger}. It runs the
// same job the scheduler runs, for catching up after downtime.
func (h *Handler) RunCalendarTrigger(c *gin.Context) {
	if !h.requireApprover(c) {
		return
	}
	trigger, err := billing.ParseTrigger(c.Param("trigger"))
	if err == nil && !trigger.IsCalendar() {
		err = fmt.Errorf("%q is not a calendar trigger: %w", trigger, apperr.ErrInvalidTrigger)
	}
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	report, err := h.svc.RunCalendarTrigger(c.Request.Context(), trigger)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.log.WithFields(report.Fields()).Info("Calendar trigger run on request")
	c.JSON(http.StatusOK, newBillingReportResponse(report))
}

// RunOverdueSweep handles POST /api/admin/sweep.
func (h *Handler) RunOverdueSweep(c *gin.Context) {
	if !h.requireApprover(c) {
		return
	}

	report, err := h.svc.RunOverdueSweep(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSweepReportResponse(report))
}
