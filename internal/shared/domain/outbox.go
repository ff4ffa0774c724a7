package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/google/uuid"
)

// OutboxEvent representa un evento pendiente de publicar en el broker.
// Payload es el sobre IntegrationEvent ya serializado.
type OutboxEvent struct {
	ID            uuid.UUID       `json:"id"`
	AggregateType string          `json:"aggregate_type"` // ej. "auction", "bid"
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"` // ej. "auction.created"
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	DispatchedAt  *time.Time      `json:"dispatched_at,omitempty"` // nil hasta que el broker confirma
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
}

// Dispatched indica si el broker ya confirmó el evento.
func (e OutboxEvent) Dispatched() bool {
	return e.DispatchedAt != nil
}

// NewOutboxEvent crea el sobre del evento y el registro de outbox que lo transporta.
func NewOutboxEvent(aggregateType, aggregateID, eventType string, payload interface{}, at time.Time) (OutboxEvent, error) {
	envelope, err := events.NewIntegrationEvent(eventType, aggregateID, payload, at)
	if err != nil {
		return OutboxEvent{}, err
	}
	return FromIntegrationEvent(aggregateType, envelope)
}

// FromIntegrationEvent guarda en outbox un sobre ya construido (ej. un Fault).
func FromIntegrationEvent(aggregateType string, envelope events.IntegrationEvent) (OutboxEvent, error) {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("marshal outbox envelope: %w", err)
	}
	return OutboxEvent{
		ID:            envelope.ID,
		AggregateType: aggregateType,
		AggregateID:   envelope.AggregateID,
		EventType:     envelope.Type,
		Payload:       raw,
		CreatedAt:     envelope.Timestamp,
	}, nil
}

// OutboxRepository define el contrato para acceder a la tabla outbox.
// Es una interfaz más pequeña que la de un repositorio de dominio completo,
// conteniendo solo los métodos que el worker necesita.
type OutboxRepository interface {
	// FetchPendingOutbox devuelve los eventos no despachados en orden de encolado.
	FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxDispatched(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordOutboxFailure incrementa los intentos y guarda el último error.
	RecordOutboxFailure(ctx context.Context, id uuid.UUID, reason string) error
}

// OutboxJanitor es lo que necesita el purgado periódico.
type OutboxJanitor interface {
	// FetchPurgeable devuelve eventos despachados antes de dispatchedBefore
	// y eventos nunca despachados encolados antes de enqueuedBefore.
	FetchPurgeable(ctx context.Context, dispatchedBefore, enqueuedBefore time.Time, limit int) ([]OutboxEvent, error)
	DeleteOutbox(ctx context.Context, ids []uuid.UUID) error
}
