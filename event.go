package shop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"nullashop.io/shop/models"
)

// subjectPrefix puts every order event under shop.order.> on the bus.
const subjectPrefix = "shop."

type EventHandler func(context.Context, *models.OrderEvent) error

type EventManager struct {
	natsConn *nats.Conn
	handlers map[models.OrderEventType]EventHandler
	logger   *zap.Logger
}

func NewEventManager(natsConn *nats.Conn, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		handlers: make(map[models.OrderEventType]EventHandler),
		logger:   logger,
	}
}

func (em *EventManager) RegisterHandler(eventType models.OrderEventType, handler EventHandler) {
	em.handlers[eventType] = handler
}

func (em *EventManager) GetHandler(eventType models.OrderEventType) (EventHandler, bool) {
	handler, exists := em.handlers[eventType]
	return handler, exists
}

// Publish puts the event on the bus, e.g. shop.order.created.
func (em *EventManager) Publish(event *models.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return em.natsConn.Publish(subjectPrefix+string(event.Type), data)
}

func (em *EventManager) SubscribeToEvents(wp *WorkerPool) error {
	_, err := em.natsConn.Subscribe(subjectPrefix+"order.>", func(msg *nats.Msg) {
		var event models.OrderEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("Failed to unmarshal event", zap.Error(err))
			return
		}

		wp.Submit(context.Background(), &event)
	})

	return err
}

func (s *service) registerEventHandlers() {
	eventHandlers := map[models.OrderEventType]EventHandler{
		models.OrderEventCreated:       s.handleOrderCreated,
		models.OrderEventStatusChanged: s.handleOrderStatusChanged,
	}

	for eventType, handler := range eventHandlers {
		s.eventManager.RegisterHandler(eventType, handler)
	}
}

// handleOrderCreated writes the audit line and warms the order cache so the
// back office sees the new order without hitting the database.
func (s *service) handleOrderCreated(ctx context.Context, event *models.OrderEvent) error {
	s.logger.Info("Order placed",
		zap.Uint64("order_id", event.OrderID),
		zap.String("user_id", event.UserID),
		zap.Float64("total", event.Total))

	if _, err := s.order.GetOrder(ctx, nil, event.OrderID); err != nil {
		return fmt.Errorf("warm order cache: %w", err)
	}
	return nil
}

func (s *service) handleOrderStatusChanged(ctx context.Context, event *models.OrderEvent) error {
	s.logger.Info("Order status changed",
		zap.Uint64("order_id", event.OrderID),
		zap.String("status", string(event.Status)))
	return nil
}
