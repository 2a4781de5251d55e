package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/events"
)

const notificationTimeout = 10 * time.Second

type notificationJob struct {
	handler events.EventHandler
	event   events.Event
}

// NotificationWorker runs notification handlers on a background goroutine so
// that slow channels never hold up the request that published the event.
// Events arriving while the backlog is full are logged and dropped.
type NotificationWorker struct {
	jobs   chan notificationJob
	logger *zap.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// StartNotificationWorker subscribes every handler in subscriptions to
// dispatcher through a queue of the given backlog.
func StartNotificationWorker(dispatcher events.Dispatcher, subscriptions map[events.EventType]events.EventHandler, backlog int, logger *zap.Logger) *NotificationWorker {
	if backlog <= 0 {
		backlog = 128
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &NotificationWorker{jobs: make(chan notificationJob, backlog), logger: logger}
	for eventType, handler := range subscriptions {
		dispatcher.Subscribe(eventType, w.deferred(handler))
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *NotificationWorker) deferred(handler events.EventHandler) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		w.mu.RLock()
		defer w.mu.RUnlock()
		if w.closed {
			return nil
		}
		select {
		case w.jobs <- notificationJob{handler: handler, event: event}:
		default:
			w.logger.Warn("notification backlog full; event dropped",
				zap.String("event_type", string(event.Type)),
				zap.String("case_id", event.CaseID))
		}
		return nil
	}
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		if err := job.handler(ctx, job.event); err != nil {
			w.logger.Warn("notification handler failed",
				zap.String("event_type", string(job.event.Type)),
				zap.String("event_id", job.event.ID),
				zap.Error(err))
		}
		cancel()
	}
}

// Stop stops accepting events and waits for the backlog to drain or ctx.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
