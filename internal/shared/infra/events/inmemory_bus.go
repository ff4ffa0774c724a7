package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	sharedDomainEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
)

type inMemoryMessage struct {
	key     string
	payload []byte
}

// InMemoryEventBus implementa un bus de eventos en memoria con topics y grupos de consumidores.
// Cada grupo recibe una copia de cada mensaje; dentro de un grupo los suscriptores compiten.
type InMemoryEventBus struct {
	mu         sync.RWMutex
	groups     map[string]map[string]chan inMemoryMessage // topic -> group -> canal
	bufferSize int
	wg         sync.WaitGroup
	log        *zap.Logger
}

// Verifica en tiempo de compilación que cumple las interfaces
var (
	_ sharedBus.EventBus   = (*InMemoryEventBus)(nil)
	_ sharedBus.Subscriber = (*InMemoryEventBus)(nil)
)

func NewInMemoryEventBus(bufferSize int, log *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		groups:     make(map[string]map[string]chan inMemoryMessage),
		bufferSize: bufferSize,
		log:        log,
	}
}

// Publish entrega el evento a todos los grupos suscritos al topic. Si un grupo
// tiene el buffer lleno, espera hasta que haya hueco o se cancele ctx.
func (b *InMemoryEventBus) Publish(ctx context.Context, topic string, event sharedDomainEvents.IntegrationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	b.mu.RLock()
	targets := make([]chan inMemoryMessage, 0, len(b.groups[topic]))
	for _, ch := range b.groups[topic] {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		b.log.Debug("Evento sin suscriptores", zap.String("topic", topic), zap.String("event_type", event.Type))
		return nil
	}

	msg := inMemoryMessage{key: event.PartitionKey(), payload: payload}
	for _, ch := range targets {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe arranca un oyente del topic dentro del grupo indicado.
func (b *InMemoryEventBus) Subscribe(ctx context.Context, topic, group string, handler sharedBus.MessageHandler) error {
	b.mu.Lock()
	if b.groups[topic] == nil {
		b.groups[topic] = make(map[string]chan inMemoryMessage)
	}
	ch, ok := b.groups[topic][group]
	if !ok {
		ch = make(chan inMemoryMessage, b.bufferSize)
		b.groups[topic][group] = ch
	}
	b.mu.Unlock()

	b.log.Info("🎧 Iniciando listener en memoria", zap.String("topic", topic), zap.String("group", group))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				b.log.Info("Listener en memoria detenido", zap.String("topic", topic), zap.String("group", group))
				return
			case msg := <-ch:
				for handler.HandleMessage(ctx, msg.key, msg.payload) != nil {
					select {
					case <-ctx.Done():
						return
					case <-time.After(redeliveryPause):
					}
				}
			}
		}
	}()
	return nil
}

// Wait espera a que terminen los oyentes tras cancelar el contexto.
func (b *InMemoryEventBus) Wait() {
	b.wg.Wait()
}
