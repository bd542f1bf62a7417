package shop

import (
	"context"

	"go.uber.org/zap"

	"nullashop.io/shop/models"
)

type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *models.OrderEvent) error
}

type WorkerPool struct {
	workers   chan struct{}
	tasks     chan func()
	logger    *zap.Logger
	processor EventProcessor
}

func NewWorkerPool(size int, processor EventProcessor, logger *zap.Logger) *WorkerPool {
	wp := &WorkerPool{
		workers:   make(chan struct{}, size),
		tasks:     make(chan func(), 1000),
		logger:    logger,
		processor: processor,
	}

	for i := 0; i < size; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	for task := range wp.tasks {
		wp.workers <- struct{}{}
		task()
		<-wp.workers
	}
}

func (wp *WorkerPool) Submit(ctx context.Context, event *models.OrderEvent) {
	wp.tasks <- func() {
		if err := wp.processor.ProcessEvent(ctx, event); err != nil {
			wp.logger.Error("Failed to process event",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID))
		}
	}
}

func (wp *WorkerPool) Shutdown() {
	close(wp.tasks)
}

// ProcessEvent dispatches the event to its registered handler.
func (s *service) ProcessEvent(ctx context.Context, event *models.OrderEvent) error {
	handler, ok := s.eventManager.GetHandler(event.Type)
	if !ok {
		s.logger.Warn("No handler registered for event", zap.String("event_type", string(event.Type)))
		return nil
	}
	return handler(ctx, event)
}
