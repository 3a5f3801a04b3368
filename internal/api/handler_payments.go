package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/mw"
)

type uploadProofRequest struct {
	FileRef string `json:"fileRef" binding:"required,max=512"`
}

// UploadProof handles POST /api/charges/{charge_id}/proof. The occupant who
// owes the charge or an administrator may upload.
func (h *Handler) UploadProof(c *gin.Context) {
	chargeID, ok := pathID(c, "charge_id")
	if !ok {
		return
	}
	var req uploadProofRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	actorID := mw.ActorID(c)
	charge, err := h.svc.Store().GetCharge(ctx, chargeID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if charge.UserID != actorID && !h.requireApprover(c) {
		return
	}

	updated, err := h.svc.UploadProofOfPayment(ctx, chargeID, req.FileRef)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newChargeResponse(*updated))
}

type setPaymentStatusRequest struct {
	Status model.PaymentStatus `json:"status" binding:"required,oneof=pending processing completed failed"`
}

// SetPaymentStatus handles PUT /api/charges/{charge_id}/status.
func (h *Handler) SetPaymentStatus(c *gin.Context) {
	chargeID, ok := pathID(c, "charge_id")
	if !ok {
		return
	}
	var req setPaymentStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	charge, err := h.svc.SetPaymentStatus(c.Request.Context(), chargeID, req.Status, mw.ActorID(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newChargeResponse(*charge))
}

type setApprovalRequest struct {
	Status model.ApprovalStatus `json:"status" binding:"required,oneof=approved rejected"`
	Note   string               `json:"note" binding:"max=512"`
}

// SetApproval handles PUT /api/semester-records/{record_id}/approvals/{track}.
func (h *Handler) SetApproval(c *gin.Context) {
	recordID, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	track := model.ApprovalTrack(c.Param("track"))
	if !track.Valid() {
		h.abortWithError(c, fmt.Errorf("track %q: %w", track, apperr.ErrInvalidInput))
		return
	}
	var req setApprovalRequest
	if !bindJSON(c, &req) {
		return
	}

	rec, err := h.svc.SetApproval(c.Request.Context(), recordID, track, req.Status, mw.ActorID(c), req.Note)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSemesterRecordResponse(*rec))
}
