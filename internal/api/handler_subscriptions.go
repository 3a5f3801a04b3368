package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/mw"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutSubscription registers the actor's browser for payment status pushes.
// Re-registering an endpoint replaces its keys and owner.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		UserID:   mw.ActorID(c),
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.svc.Store().UpsertSubscription(c.Request.Context(), &subscription); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes one of the actor's endpoints.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.svc.Store().DeleteSubscription(c.Request.Context(), req.Endpoint, mw.ActorID(c)); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscriptions lists the endpoints registered by the actor.
func (h *Handler) GetSubscriptions(c *gin.Context) {
	subs, err := h.svc.Store().ListSubscriptions(c.Request.Context(), mw.ActorID(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	endpoints := make([]string, len(subs))
	for i, s := range subs {
		endpoints[i] = s.Endpoint
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": endpoints})
}

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
