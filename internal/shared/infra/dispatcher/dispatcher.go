// Package dispatcher envuelve a los consumidores con la política de entrega:
// reintentos acotados, dead-letter y publicación de Fault al dueño del evento.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/internal/shared/domain/faults"
	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
)

// Policy es la política de reintentos por mensaje.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPolicy: 5 intentos separados 5 segundos.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, Interval: 5 * time.Second}
}

// Dispatcher implementa bus.MessageHandler para un consumidor y un topic.
type Dispatcher struct {
	consumer  string
	topic     string
	handler   sharedBus.MessageHandler
	publisher sharedBus.EventBus
	policy    Policy
	log       *zap.Logger
	now       func() time.Time
}

func New(consumer, topic string, handler sharedBus.MessageHandler, publisher sharedBus.EventBus, policy Policy, log *zap.Logger) *Dispatcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Dispatcher{
		consumer:  consumer,
		topic:     topic,
		handler:   handler,
		publisher: publisher,
		policy:    policy,
		log:       log.With(zap.String("consumer", consumer), zap.String("topic", topic)),
		now:       time.Now,
	}
}

// HandleMessage entrega el mensaje al consumidor con reintentos. Si se agotan,
// lo manda a dead-letter y devuelve nil: el mensaje queda resuelto y el bucle sigue.
// Solo devuelve error si ni siquiera se pudo dejar en dead-letter.
func (d *Dispatcher) HandleMessage(ctx context.Context, key string, payload []byte) error {
	attempts := 0
	operation := func() (struct{}, error) {
		attempts++
		// La entrega en curso termina aunque se cancele ctx.
		err := d.handler.HandleMessage(context.WithoutCancel(ctx), key, payload)
		if err != nil && faults.IsPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(d.policy.Interval)),
		backoff.WithMaxTries(uint(d.policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			d.log.Warn("🔁 Reintentando entrega",
				zap.String("key", key),
				zap.Int("attempt", attempts),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && !faults.IsPermanent(err) && attempts < d.policy.MaxAttempts {
		// Apagado a mitad de los reintentos: el transporte lo volverá a entregar.
		return err
	}
	return d.deadLetter(context.WithoutCancel(ctx), key, payload, err, attempts)
}

func (d *Dispatcher) deadLetter(ctx context.Context, key string, payload []byte, cause error, attempts int) error {
	original, decodeErr := events.Decode(payload)
	if decodeErr != nil {
		// Sin sobre válido guardamos los bytes tal cual como contenido.
		original = events.IntegrationEvent{AggregateID: key, Data: rawJSON(payload)}
	}

	fault := events.Fault{
		FaultID:   uuid.New(),
		Message:   original,
		Consumer:  d.consumer,
		Reason:    string(faults.ReasonOf(cause)),
		Detail:    cause.Error(),
		Attempts:  attempts,
		FaultedAt: d.now().UTC(),
	}
	if fe, ok := faults.Classify(cause); ok {
		fault.Field = fe.Field
	}

	envelope, err := events.NewIntegrationEvent(events.FaultType(original.Type), original.AggregateID, fault, fault.FaultedAt)
	if err != nil {
		return err
	}

	dlq := events.DeadLetterTopic(d.consumer, d.topic)
	if err := d.publisher.Publish(ctx, dlq, envelope); err != nil {
		d.log.Error("💀 No se pudo enviar a dead-letter", zap.String("key", key), zap.Error(err))
		return errors.Join(cause, err)
	}
	d.log.Error("💀 Mensaje enviado a dead-letter",
		zap.String("key", key),
		zap.String("event_type", original.Type),
		zap.String("dead_letter_topic", dlq),
		zap.Int("attempts", attempts),
		zap.String("reason", fault.Reason),
		zap.Error(cause),
	)

	if faults.IsCompensable(cause) && decodeErr == nil {
		faultTopic := events.FaultTopic(d.topic)
		if err := d.publisher.Publish(ctx, faultTopic, envelope); err != nil {
			// El mensaje ya está en dead-letter; la compensación se puede relanzar desde allí.
			d.log.Error("No se pudo publicar el Fault al dueño", zap.String("topic", faultTopic), zap.Error(err))
			return nil
		}
		d.log.Info("📨 Fault publicado al dueño del evento", zap.String("topic", faultTopic))
	}
	return nil
}

// rawJSON devuelve los bytes como JSON válido: tal cual si ya lo son, como string si no.
func rawJSON(b []byte) []byte {
	if json.Valid(b) {
		return b
	}
	quoted, _ := json.Marshal(string(b))
	return quoted
}

var _ sharedBus.MessageHandler = (*Dispatcher)(nil)
