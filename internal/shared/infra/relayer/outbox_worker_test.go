package relayer

import (
	"context"
	"errors"
	"testing"
	"time"

	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	sharedDomainEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/tests/mocks"
)

func auctionCreatedOutbox(t *testing.T, aggregateID string) sharedDomain.OutboxEvent {
	t.Helper()
	evt, err := sharedDomain.NewOutboxEvent("auction", aggregateID, sharedDomainEvents.AuctionCreatedType,
		sharedDomainEvents.AuctionCreated{Make: "Ford", Model: "GT"}, time.Now())
	require.NoError(t, err)
	return evt
}

func withID(id uuid.UUID) interface{} {
	return mock.MatchedBy(func(e sharedDomainEvents.IntegrationEvent) bool { return e.ID == id })
}

func TestOutboxWorker_ProcessBatch_Success(t *testing.T) {
	// ARRANGE
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	testEvent := auctionCreatedOutbox(t, uuid.NewString())

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()
	publisher.On("Publish", mock.Anything, sharedDomainEvents.AuctionCreatedTopic, withID(testEvent.ID)).Return(nil).Once()
	repo.On("MarkOutboxDispatched", mock.Anything, testEvent.ID, mock.Anything).Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, sharedDomainEvents.NewEventRegistry(), time.Second, 10, zap.NewNop())

	// ACT
	n := worker.ProcessBatch(context.Background())

	// ASSERT
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestOutboxWorker_ProcessBatch_PublisherFails(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	testEvent := auctionCreatedOutbox(t, uuid.NewString())

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka is down")).Once()
	repo.On("RecordOutboxFailure", mock.Anything, testEvent.ID, "kafka is down").Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, sharedDomainEvents.NewEventRegistry(), time.Second, 10, zap.NewNop())

	n := worker.ProcessBatch(context.Background())

	assert.Equal(t, 0, n)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkOutboxDispatched", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_UnknownEventType(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	testEvent := auctionCreatedOutbox(t, uuid.NewString())
	testEvent.EventType = "unregistered.event"

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{testEvent}, nil).Once()
	repo.On("RecordOutboxFailure", mock.Anything, testEvent.ID, mock.Anything).Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, make(map[string]sharedDomainEvents.EventMetadata), time.Second, 10, zap.NewNop())

	worker.ProcessBatch(context.Background())

	repo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkOutboxDispatched", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_FailureHoldsBackSameAggregate(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	auctionA := uuid.NewString()
	a1 := auctionCreatedOutbox(t, auctionA)
	a2 := auctionCreatedOutbox(t, auctionA)
	b1 := auctionCreatedOutbox(t, uuid.NewString())

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{a1, a2, b1}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything, withID(a1.ID)).Return(errors.New("timeout")).Once()
	publisher.On("Publish", mock.Anything, mock.Anything, withID(b1.ID)).Return(nil).Once()
	repo.On("RecordOutboxFailure", mock.Anything, a1.ID, "timeout").Return(nil).Once()
	repo.On("MarkOutboxDispatched", mock.Anything, b1.ID, mock.Anything).Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, sharedDomainEvents.NewEventRegistry(), time.Second, 10, zap.NewNop())

	n := worker.ProcessBatch(context.Background())

	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, withID(a2.ID))
}

func TestOutboxWorker_Start_StopsOnCancel(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	polled := make(chan struct{}, 1)
	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{}, nil).
		Run(func(mock.Arguments) {
			select {
			case polled <- struct{}{}:
			default:
			}
		})

	worker := NewOutboxWorker(repo, publisher, sharedDomainEvents.NewEventRegistry(), 5*time.Millisecond, 10, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("worker never polled")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

// Verificación estática de que los mocks cumplen las interfaces.
var _ sharedDomain.OutboxRepository = (*mocks.MockOutboxRepository)(nil)
var _ sharedBus.EventBus = (*mocks.MockPublisher)(nil)
