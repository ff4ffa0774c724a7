package bus

import (
	"context"

	"github.com/davicafu/pujalab/internal/shared/domain/events"
)

type Keyer interface {
	PartitionKey() string
}

// EventBus publica un sobre en un topic. El transporte garantiza al menos una entrega.
type EventBus interface {
	Publish(ctx context.Context, topic string, event events.IntegrationEvent) error
}

// MessageHandler define la interfaz que debe cumplir cualquier consumidor de eventos.
// Un error significa que el mensaje no se pudo procesar.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, payload []byte) error
}

// HandlerFunc adapta una función a MessageHandler.
type HandlerFunc func(ctx context.Context, key string, payload []byte) error

func (f HandlerFunc) HandleMessage(ctx context.Context, key string, payload []byte) error {
	return f(ctx, key, payload)
}

// Subscriber arranca un bucle de consumo de un topic con un grupo de consumidores.
// El bucle termina cuando se cancela ctx, tras acabar el mensaje en curso.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, group string, handler MessageHandler) error
}

var _ Keyer = events.IntegrationEvent{}
