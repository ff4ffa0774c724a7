package events

import (
	"fmt"
	"reflect"
	"strings"
)

// Tipos de evento (conjunto cerrado).
const (
	AuctionCreatedType  = "auction.created"
	AuctionUpdatedType  = "auction.updated"
	AuctionFinishedType = "auction.finished"
	BidPlacedType       = "bid.placed"

	faultTypePrefix = "fault."
)

// Topics del transporte.
const (
	AuctionCreatedTopic  = "auction-created"
	AuctionUpdatedTopic  = "auction-updated"
	AuctionFinishedTopic = "auction-finished"
	BidPlacedTopic       = "bid-placed"
)

// FaultType devuelve el tipo del envoltorio Fault para un tipo de evento.
func FaultType(eventType string) string {
	return faultTypePrefix + eventType
}

// IsFaultType indica si el tipo corresponde a un Fault y devuelve el tipo original.
func IsFaultType(eventType string) (string, bool) {
	if !strings.HasPrefix(eventType, faultTypePrefix) {
		return "", false
	}
	return strings.TrimPrefix(eventType, faultTypePrefix), true
}

// FaultTopic es el topic por el que el dueño recibe los Fault de sus eventos.
func FaultTopic(topic string) string {
	return topic + "-fault"
}

// DeadLetterTopic es el canal de mensajes muertos de un consumidor para un topic.
func DeadLetterTopic(consumer, topic string) string {
	return fmt.Sprintf("%s-%s_error", consumer, topic)
}

// NewEventRegistry construye el registro de todos los eventos publicables, incluidos sus Fault.
func NewEventRegistry() map[string]EventMetadata {
	base := map[string]EventMetadata{
		AuctionCreatedType:  {Type: reflect.TypeOf(AuctionCreated{}), Topic: AuctionCreatedTopic},
		AuctionUpdatedType:  {Type: reflect.TypeOf(AuctionUpdated{}), Topic: AuctionUpdatedTopic},
		AuctionFinishedType: {Type: reflect.TypeOf(AuctionFinished{}), Topic: AuctionFinishedTopic},
		BidPlacedType:       {Type: reflect.TypeOf(BidPlaced{}), Topic: BidPlacedTopic},
	}

	registry := make(map[string]EventMetadata, len(base)*2)
	for eventType, meta := range base {
		registry[eventType] = meta
		registry[FaultType(eventType)] = EventMetadata{
			Type:  reflect.TypeOf(Fault{}),
			Topic: FaultTopic(meta.Topic),
		}
	}
	return registry
}

// TopicFor resuelve el topic de un tipo de evento.
func TopicFor(registry map[string]EventMetadata, eventType string) (string, bool) {
	meta, ok := registry[eventType]
	if !ok {
		return "", false
	}
	return meta.Topic, true
}
