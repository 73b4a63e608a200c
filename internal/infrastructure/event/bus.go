package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/logger"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
)

// ErrBusStopped is returned when publishing after Stop
var ErrBusStopped = errors.New("event: bus stopped")

// InMemoryEventBus dispatches domain events to subscribed handlers in the
// publishing goroutine. A failing or panicking handler is logged and does not
// affect the publisher or the remaining handlers.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	stopped  atomic.Bool
	inFlight sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// Publish delivers each event to its handlers
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.stopped.Load() {
		return ErrBusStopped
	}
	b.inFlight.Add(1)
	defer b.inFlight.Done()

	for _, evt := range events {
		if evt == nil {
			continue
		}
		for _, sub := range b.registry.subscriptionsFor(evt.EventType()) {
			b.dispatch(ctx, sub, evt)
		}
	}
	return nil
}

// Subscribe registers a handler. Without explicit event types the
// handler's own EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Info("Event handler subscribed",
		zap.String("handler", handlerName(handler)),
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("Event handler unsubscribed", zap.String("handler", handlerName(handler)))
}

// Start re-opens a stopped bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("Event bus started")
	return nil
}

// Stop rejects new publishes and waits for in-flight ones until ctx expires
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.stopped.Store(true)

	done := make(chan struct{})
	go func() {
		b.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus stop: %w", ctx.Err())
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, sub subscription, evt shared.DomainEvent) {
	ctx, span := telemetry.StartSpan(ctx, "event."+evt.EventType(),
		telemetry.WithSpanKind(trace.SpanKindConsumer),
		telemetry.WithAttribute("event.id", evt.EventID().String()),
		telemetry.WithAttribute("event.handler", sub.name),
	)
	defer span.End()

	log := logger.Enrich(ctx, b.logger).With(
		zap.String("event_type", evt.EventType()),
		zap.String("event_id", evt.EventID().String()),
		zap.String("handler", sub.name),
	)

	defer func() {
		if r := recover(); r != nil {
			telemetry.RecordError(span, fmt.Errorf("handler panic: %v", r))
			log.Error("Event handler panicked", zap.Any("panic", r))
		}
	}()

	if err := sub.handler.Handle(ctx, evt); err != nil {
		telemetry.RecordError(span, err)
		log.Error("Event handler failed", zap.Error(err))
	}
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
