package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/mw"
	"residence-billing-backend/internal/residence"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *residence.Service
	webpush *webpush.Options
	log     logrus.FieldLogger
}

// NewHandler creates a new API handler.
func NewHandler(svc *residence.Service, webpushOptions *webpush.Options, log logrus.FieldLogger) *Handler {
	return &Handler{
		svc:     svc,
		webpush: webpushOptions,
		log:     log.WithField("component", "api"),
	}
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrBedUnavailable),
		errors.Is(err, apperr.ErrQuotaExceeded),
		errors.Is(err, apperr.ErrStaleState),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrDuplicateCharge):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidDefinition),
		errors.Is(err, apperr.ErrNoRoomContext),
		errors.Is(err, apperr.ErrInvalidDateRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, apperr.ErrInvalidTrigger):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{"error": err.Error()}
	if te := apperr.IsTransitionError(err); te != nil {
		body["from"] = te.From
		body["to"] = te.To
	}
	c.AbortWithStatusJSON(status, body)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// requireApprover aborts with 403 unless the actor is an administrator.
func (h *Handler) requireApprover(c *gin.Context) bool {
	actorID := mw.ActorID(c)
	actor, err := h.svc.Store().GetUser(c.Request.Context(), actorID)
	if err != nil {
		h.abortWithError(c, err)
		return false
	}
	if !actor.Role.IsApprover() {
		h.abortWithError(c, fmt.Errorf("user %d (%s): %w", actorID, actor.Role, apperr.ErrForbidden))
		return false
	}
	return true
}
