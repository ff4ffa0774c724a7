package events

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// IntegrationEvent es el sobre común de todos los eventos que viajan por el transporte.
// Es inmutable una vez emitido.
type IntegrationEvent struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"` // contenido específico del evento
}

// PartitionKey mantiene el orden por agregado en los transportes particionados.
func (e IntegrationEvent) PartitionKey() string {
	return e.AggregateID
}

// EventMetadata describe cómo se decodifica y a qué topic se publica un tipo de evento.
type EventMetadata struct {
	Type  reflect.Type
	Topic string
}

// NewIntegrationEvent serializa el payload y lo envuelve en un sobre nuevo.
func NewIntegrationEvent(eventType, aggregateID string, payload interface{}, at time.Time) (IntegrationEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return IntegrationEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return IntegrationEvent{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Timestamp:   at.UTC(),
		Data:        data,
	}, nil
}

// Decode parsea el sobre desde bytes del transporte.
func Decode(payload []byte) (IntegrationEvent, error) {
	var evt IntegrationEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return IntegrationEvent{}, fmt.Errorf("decode integration event: %w", err)
	}
	if evt.Type == "" {
		return IntegrationEvent{}, fmt.Errorf("decode integration event: missing type")
	}
	return evt, nil
}

// DecodeData parsea el contenido del sobre en el tipo concreto T.
func DecodeData[T any](evt IntegrationEvent) (T, error) {
	var out T
	if err := json.Unmarshal(evt.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s data: %w", evt.Type, err)
	}
	return out, nil
}
