package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/segmentio/kafka-go"

	sharedDomainEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
)

const eventTypeHeader = "event-type"

// KafkaPublisher escribe cada sobre en el topic indicado. El writer no debe fijar Topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

// NewKafkaWriter crea un writer multi-topic con balanceo por clave, así un agregado
// siempre cae en la misma partición y conserva su orden.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event sharedDomainEvents.IntegrationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var key []byte
	if k := event.PartitionKey(); k != "" {
		key = []byte(k)
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   data,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(event.Type)}},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.String("topic", topic), zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully",
		zap.String("topic", topic),
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.Type),
	)
	return nil
}

// Verificación estática
var _ sharedBus.EventBus = (*KafkaPublisher)(nil)
