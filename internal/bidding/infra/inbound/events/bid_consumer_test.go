package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/bidding/application"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/internal/shared/domain/faults"
	"github.com/davicafu/pujalab/tests/mocks"
)

func TestBidConsumer_AuctionCreatedIsIdempotent(t *testing.T) {
	repo := mocks.NewInMemoryBidRepo()
	consumer := NewBidConsumer(application.NewBidService(repo, nil, zap.NewNop()), zap.NewNop())

	created := sharedEvents.AuctionCreated{ID: uuid.New(), Seller: "bob", ReservePrice: 500, AuctionEnd: time.Now().Add(time.Hour)}
	evt, err := sharedEvents.NewIntegrationEvent(sharedEvents.AuctionCreatedType, created.ID.String(), created, time.Now())
	require.NoError(t, err)
	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, consumer.HandleMessage(context.Background(), created.ID.String(), raw))
	}
	require.Len(t, repo.Refs, 1)
	assert.Equal(t, 500, repo.Refs[created.ID].ReservePrice)
}

func TestBidConsumer_MalformedIsPermanent(t *testing.T) {
	consumer := NewBidConsumer(application.NewBidService(mocks.NewInMemoryBidRepo(), nil, zap.NewNop()), zap.NewNop())

	raw := []byte(`{"id":"` + uuid.NewString() + `","type":"auction.created","data":"not an object"}`)
	err := consumer.HandleMessage(context.Background(), "k", raw)
	assert.True(t, faults.IsPermanent(err))
}

func TestBidConsumerTopics(t *testing.T) {
	assert.Equal(t, []string{"auction-created"}, Topics())
	assert.Equal(t, "bidding", ConsumerName)
}
