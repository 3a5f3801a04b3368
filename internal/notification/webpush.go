package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"

	"residence-billing-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the part of the store the push sink needs.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

// reachedTTL bounds how long a delivered (event, endpoint) pair is remembered;
// it outlives any retry schedule of the worker pool.
const reachedTTL = 30 * time.Minute

// WebPushSink pushes events to the browsers the occupant subscribed.
type WebPushSink struct {
	store   SubscriptionStore
	options *webpush.Options
	sender  NotificationSender
	reached *cache.Cache
}

func NewWebPushSink(store SubscriptionStore, options *webpush.Options) *WebPushSink {
	return &WebPushSink{
		store:   store,
		options: options,
		sender:  &WebPushSender{},
		reached: cache.New(reachedTTL, 2*reachedTTL),
	}
}

func (s *WebPushSink) Name() string { return "webpush" }

// Deliver sends the event to each subscription of the occupant. Expired
// subscriptions are deleted. Any failed endpoint makes it return an error;
// a retry of the same event only goes to endpoints not yet reached.
func (s *WebPushSink) Deliver(ctx context.Context, ev Event) error {
	subs, err := s.store.ListSubscriptions(ctx, ev.OccupantID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
	}

	var failures []error
	for _, sub := range subs {
		key := ev.ID.String() + "|" + sub.Endpoint
		if _, done := s.reached.Get(key); done {
			continue
		}
		if err := s.send(ctx, sub, payload); err != nil {
			failures = append(failures, err)
			continue
		}
		s.reached.SetDefault(key, struct{}{})
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d subscriptions failed: %w", len(failures), len(subs), errors.Join(failures...))
	}
	return nil
}

func (s *WebPushSink) send(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := s.sender.Send(payload, wpSub, s.options)
	if err != nil {
		return fmt.Errorf("push to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		// Expired subscriptions are dropped and count as handled.
		if err := s.store.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
			return fmt.Errorf("failed to delete expired subscription %s: %w", sub.Endpoint, err)
		}
		return nil
	case resp.StatusCode >= 400:
		return fmt.Errorf("push to %s: status %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}
