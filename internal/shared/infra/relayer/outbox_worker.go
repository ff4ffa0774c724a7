package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	sharedDomainEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
	"go.uber.org/zap"
)

// Worker procesa eventos pendientes de la tabla outbox de forma genérica.
type Worker struct {
	repo          sharedDomain.OutboxRepository
	publisher     sharedBus.EventBus
	eventRegistry map[string]sharedDomainEvents.EventMetadata
	interval      time.Duration
	batchSize     int
	log           *zap.Logger
	now           func() time.Time
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventBus,
	registry map[string]sharedDomainEvents.EventMetadata,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:          repo,
		publisher:     publisher,
		eventRegistry: registry,
		interval:      interval,
		batchSize:     batchSize,
		log:           log,
		now:           time.Now,
	}
}

// Start inicia el bucle de polling del worker. Bloquea hasta que se cancela ctx;
// el lote en curso termina antes de salir.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.log.Debug("🔄 Ejecutando polling de outbox")
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publica un lote de eventos pendientes y devuelve cuántos se despacharon.
// Si un evento falla, el resto de eventos del mismo agregado en el lote se aplaza.
func (w *Worker) ProcessBatch(ctx context.Context) int {
	// El lote en curso no se abandona a medias si se cancela ctx.
	work := context.WithoutCancel(ctx)

	events, err := w.repo.FetchPendingOutbox(work, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return 0
	}
	if len(events) > 0 {
		w.log.Info(fmt.Sprintf("📬 %d eventos encontrados para procesar", len(events)))
	}

	blocked := make(map[string]bool)
	dispatched := 0
	for _, evt := range events {
		if ctx.Err() != nil {
			break
		}
		key := evt.AggregateType + "/" + evt.AggregateID
		if blocked[key] {
			continue
		}
		if err := w.publishAndMark(work, evt); err != nil {
			blocked[key] = true
			continue
		}
		dispatched++
	}
	return dispatched
}

func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) error {
	envelope, err := w.decode(evt)
	if err != nil {
		w.log.Error("Evento de outbox inválido",
			zap.String("event_id", evt.ID.String()),
			zap.String("event_type", evt.EventType),
			zap.Error(err),
		)
		w.recordFailure(ctx, evt, err)
		return err
	}

	topic := w.eventRegistry[evt.EventType].Topic
	if err := w.publisher.Publish(ctx, topic, envelope); err != nil {
		w.log.Warn("⚠️ No se pudo publicar evento",
			zap.String("event_id", evt.ID.String()),
			zap.String("topic", topic),
			zap.Error(err),
		)
		w.recordFailure(ctx, evt, err)
		return err // No lo marcamos como despachado para que se reintente
	}

	if err := w.repo.MarkOutboxDispatched(ctx, evt.ID, w.now().UTC()); err != nil {
		// Publicado pero no marcado: se volverá a publicar, los consumidores son idempotentes.
		w.log.Warn("⚠️ No se pudo marcar evento como despachado",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
		return err
	}

	w.log.Info("✅ Evento publicado y marcado",
		zap.String("event_id", evt.ID.String()),
		zap.String("event_type", evt.EventType),
		zap.String("aggregate_id", evt.AggregateID),
	)
	return nil
}

// decode valida el sobre contra el registro antes de publicarlo.
func (w *Worker) decode(evt sharedDomain.OutboxEvent) (sharedDomainEvents.IntegrationEvent, error) {
	metadata, ok := w.eventRegistry[evt.EventType]
	if !ok {
		return sharedDomainEvents.IntegrationEvent{}, fmt.Errorf("unknown event type %q", evt.EventType)
	}

	envelope, err := sharedDomainEvents.Decode(evt.Payload)
	if err != nil {
		return sharedDomainEvents.IntegrationEvent{}, err
	}

	// Creamos una nueva instancia del tipo registrado para comprobar que el contenido encaja.
	data := reflect.New(metadata.Type).Interface()
	if err := json.Unmarshal(envelope.Data, data); err != nil {
		return sharedDomainEvents.IntegrationEvent{}, fmt.Errorf("payload does not match %s: %w", metadata.Type, err)
	}
	return envelope, nil
}

func (w *Worker) recordFailure(ctx context.Context, evt sharedDomain.OutboxEvent, cause error) {
	if err := w.repo.RecordOutboxFailure(ctx, evt.ID, cause.Error()); err != nil {
		w.log.Warn("⚠️ No se pudo registrar el fallo del evento",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
	}
}
