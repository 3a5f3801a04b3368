package notification

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"residence-billing-backend/config"
)

// WorkerPool delivers dispatched events to every sink, retrying failed
// deliveries with exponential backoff.
type WorkerPool struct {
	size        int
	jobs        chan Event
	sinks       []Sink
	maxAttempts int
	backoff     time.Duration
	limiter     *rate.Limiter
	log         logrus.FieldLogger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(cfg config.WorkerPoolConfig, log logrus.FieldLogger, sinks ...Sink) *WorkerPool {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), cfg.SendsPerSecond)
	}
	return &WorkerPool{
		size:        cfg.Size,
		jobs:        make(chan Event, cfg.QueueSize),
		sinks:       sinks,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff(),
		limiter:     limiter,
		log:         log.WithField("component", "notification"),
	}
}

// Start launches the worker goroutines. They stop when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.WithField("worker", id)
	log.Debug("Worker started")
	for {
		select {
		case ev := <-wp.jobs:
			for _, sink := range wp.sinks {
				wp.deliver(ctx, sink, ev)
			}
		case <-ctx.Done():
			log.Debug("Worker shutting down")
			return
		}
	}
}

// Dispatch queues the event. When the queue is full the event is dropped
// and logged; the caller's state change is never held up.
func (wp *WorkerPool) Dispatch(ev Event) {
	select {
	case wp.jobs <- ev:
	default:
		wp.log.WithFields(logrus.Fields{"event_id": ev.ID, "event": ev.Name}).Error("Notification queue full; dropping event")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}

func (wp *WorkerPool) deliver(ctx context.Context, sink Sink, ev Event) {
	log := wp.log.WithFields(logrus.Fields{"sink": sink.Name(), "event_id": ev.ID, "event": ev.Name})
	delay := wp.backoff
	for attempt := 1; ; attempt++ {
		if err := wp.limiter.Wait(ctx); err != nil {
			return
		}
		err := sink.Deliver(ctx, ev)
		if err == nil {
			return
		}
		if attempt >= wp.maxAttempts {
			log.WithError(err).Errorf("Giving up after %d attempts", attempt)
			return
		}
		log.WithError(err).Warnf("Delivery attempt %d failed; retrying in %s", attempt, delay)

		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return
		}
	}
}
