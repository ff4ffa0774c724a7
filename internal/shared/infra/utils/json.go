package utils

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/internal/shared/domain/faults"
	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
)

// EventHandler procesa un sobre ya decodificado.
type EventHandler func(ctx context.Context, evt events.IntegrationEvent) error

// UnmarshalAndHandle decodifica Data al tipo del evento y llama al caso de uso.
// Un payload ilegible es un fallo permanente: reintentarlo no lo arregla.
func UnmarshalAndHandle[T any](handler func(ctx context.Context, evt T) error) EventHandler {
	return func(ctx context.Context, evt events.IntegrationEvent) error {
		data, err := events.DecodeData[T](evt)
		if err != nil {
			return faults.Malformed(err)
		}
		return handler(ctx, data)
	}
}

// UnmarshalWithEnvelope es como UnmarshalAndHandle pero también pasa el sobre,
// para las proyecciones que guardan el id y la fecha del último evento aplicado.
func UnmarshalWithEnvelope[T any](handler func(ctx context.Context, env events.IntegrationEvent, evt T) error) EventHandler {
	return func(ctx context.Context, env events.IntegrationEvent) error {
		data, err := events.DecodeData[T](env)
		if err != nil {
			return faults.Malformed(err)
		}
		return handler(ctx, env, data)
	}
}

// EventRouter es la tabla de despacho de un consumidor: un handler por tipo de evento.
// Los tipos sin handler se ignoran con un aviso.
type EventRouter struct {
	handlers map[string]EventHandler
	timeout  time.Duration
	log      *zap.Logger
}

func NewEventRouter(timeout time.Duration, log *zap.Logger) *EventRouter {
	return &EventRouter{
		handlers: make(map[string]EventHandler),
		timeout:  timeout,
		log:      log,
	}
}

// On registra el handler de un tipo de evento.
func (r *EventRouter) On(eventType string, handler EventHandler) *EventRouter {
	r.handlers[eventType] = handler
	return r
}

// Handles indica si hay handler para el tipo.
func (r *EventRouter) Handles(eventType string) bool {
	_, ok := r.handlers[eventType]
	return ok
}

func (r *EventRouter) HandleMessage(ctx context.Context, key string, payload []byte) error {
	evt, err := events.Decode(payload)
	if err != nil {
		return faults.Malformed(err)
	}

	handler, ok := r.handlers[evt.Type]
	if !ok {
		r.log.Warn("Unknown event type", zap.String("type", evt.Type), zap.String("key", key))
		return nil
	}

	ctxEvt, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := handler(ctxEvt, evt); err != nil {
		r.log.Warn("Failed to process event",
			zap.String("event_id", evt.ID.String()),
			zap.String("type", evt.Type),
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}

	r.log.Debug("Event processed", zap.String("event_id", evt.ID.String()), zap.String("type", evt.Type))
	return nil
}

var _ sharedBus.MessageHandler = (*EventRouter)(nil)
