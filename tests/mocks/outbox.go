package mocks

import (
	"context"
	"sync"
	"time"

	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	"github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockOutboxRepository simula el repo de outbox
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkOutboxDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockOutboxRepository) RecordOutboxFailure(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockOutboxRepository) FetchPurgeable(ctx context.Context, dispatchedBefore, enqueuedBefore time.Time, limit int) ([]sharedDomain.OutboxEvent, error) {
	args := m.Called(ctx, dispatchedBefore, enqueuedBefore, limit)
	return args.Get(0).([]sharedDomain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) DeleteOutbox(ctx context.Context, ids []uuid.UUID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// MockPublisher simula un publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, event events.IntegrationEvent) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

// Published es un mensaje capturado por RecordingBus.
type Published struct {
	Topic string
	Event events.IntegrationEvent
}

// RecordingBus guarda todo lo publicado. Con FailTopics simula caídas por topic.
type RecordingBus struct {
	mu         sync.Mutex
	Messages   []Published
	FailTopics map[string]error
}

func NewRecordingBus() *RecordingBus {
	return &RecordingBus{FailTopics: map[string]error{}}
}

func (b *RecordingBus) Publish(ctx context.Context, topic string, event events.IntegrationEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.FailTopics[topic]; ok {
		return err
	}
	b.Messages = append(b.Messages, Published{Topic: topic, Event: event})
	return nil
}

// OnTopic devuelve los eventos publicados en un topic.
func (b *RecordingBus) OnTopic(topic string) []events.IntegrationEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.IntegrationEvent
	for _, m := range b.Messages {
		if m.Topic == topic {
			out = append(out, m.Event)
		}
	}
	return out
}

func (b *RecordingBus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Messages)
}
