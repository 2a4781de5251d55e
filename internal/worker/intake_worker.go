package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/service"
)

// ErrQueueFull is returned by Enqueue when the backlog is at capacity.
var ErrQueueFull = errors.New("intake queue full")

// EmailProcessor is the part of the intake service the pool drives.
type EmailProcessor interface {
	ProcessEmail(ctx context.Context, providerMessageID string) *service.IntakeResult
}

// IntakePool processes mailbox notifications in the background so the
// webhook can acknowledge quickly. Duplicate deliveries are harmless because
// the intake itself is idempotent.
type IntakePool struct {
	processor EmailProcessor
	logger    *zap.Logger
	jobs      chan string
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewIntakePool starts workers goroutines reading from a queue of queueSize.
// Stop drains the queue.
func NewIntakePool(processor EmailProcessor, workers, queueSize int, logger *zap.Logger) *IntakePool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &IntakePool{processor: processor, logger: logger, jobs: make(chan string, queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *IntakePool) run() {
	defer p.wg.Done()
	for id := range p.jobs {
		result := p.processor.ProcessEmail(context.Background(), id)
		if result != nil && !result.Success {
			p.logger.Warn("queued intake failed", zap.String("provider_message_id", id), zap.String("error", result.Error))
		}
	}
}

// Enqueue schedules a message without blocking.
func (p *IntakePool) Enqueue(providerMessageID string) error {
	select {
	case p.jobs <- providerMessageID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight work or ctx.
func (p *IntakePool) Stop(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.jobs) })
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
