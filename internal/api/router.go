package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"residence-billing-backend/config"
	"residence-billing-backend/internal/mw"
	"residence-billing-backend/internal/residence"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(svc *residence.Service, cfg config.ServerConfig, webpushOptions *webpush.Options, log logrus.FieldLogger) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(svc, webpushOptions, log)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	responses := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	caching := responses.Read()

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/dormitories", caching, handler.GetDorms)
		api.GET("/dormitories/:dorm_id/available-beds", caching, handler.GetAvailableBeds)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		acting := api.Group("")
		acting.Use(mw.Actor(), responses.Invalidate())

		acting.POST("/dormitories", handler.CreateDorm)
		acting.POST("/dormitories/:dorm_id/rooms", handler.CreateRoom)
		acting.PUT("/rooms/:room_id/quota", handler.SetRoomQuota)
		acting.POST("/payment-types", handler.CreatePaymentType)

		acting.POST("/occupants/:occupant_id/bed", handler.AssignBed)
		acting.DELETE("/occupants/:occupant_id/bed", handler.ReleaseBed)
		acting.POST("/occupants/:occupant_id/events/:trigger", handler.TriggerEvent)
		acting.GET("/occupants/:occupant_id/access", handler.GetAccess)

		acting.POST("/charges/:charge_id/proof", handler.UploadProof)
		acting.PUT("/charges/:charge_id/status", handler.SetPaymentStatus)
		acting.PUT("/semester-records/:record_id/approvals/:track", handler.SetApproval)

		acting.POST("/admin/calendar/:trigger", handler.RunCalendarTrigger)
		acting.POST("/admin/sweep", handler.RunOverdueSweep)

		acting.GET("/subscriptions", handler.GetSubscriptions)
		acting.PUT("/subscriptions", handler.PutSubscription)
		acting.DELETE("/subscriptions", handler.DeleteSubscription)
	}

	return r
}
