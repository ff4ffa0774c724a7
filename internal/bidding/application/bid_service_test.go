package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/bidding/application"
	"github.com/davicafu/pujalab/internal/bidding/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/tests/mocks"
)

func liveRef(seller string, reserve int) domain.AuctionRef {
	return domain.AuctionRef{
		ID:           uuid.New(),
		Seller:       seller,
		AuctionEnd:   time.Now().Add(time.Hour),
		ReservePrice: reserve,
	}
}

func TestPlaceBid_StatusProgression(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewInMemoryBidRepo()
	ref := liveRef("bob", 1000)
	repo.Refs[ref.ID] = ref
	svc := application.NewBidService(repo, nil, zap.NewNop())

	steps := []struct {
		bidder string
		amount int
		want   string
	}{
		{"alice", 500, sharedEvents.BidStatusAcceptedBelowReserve},
		{"carol", 400, sharedEvents.BidStatusTooLow},
		{"carol", 1500, sharedEvents.BidStatusAccepted},
		{"alice", 1500, sharedEvents.BidStatusTooLow},
	}
	for _, s := range steps {
		bid, err := svc.PlaceBid(ctx, ref.ID, s.bidder, s.amount)
		require.NoError(t, err)
		assert.Equal(t, s.want, bid.Status, "%s %d", s.bidder, s.amount)
	}

	// Cada puja, aceptada o no, encola su BidPlaced.
	assert.Len(t, repo.OutboxTypes(), len(steps))
	for _, typ := range repo.OutboxTypes() {
		assert.Equal(t, sharedEvents.BidPlacedType, typ)
	}

	var payload sharedEvents.IntegrationEvent
	require.NoError(t, json.Unmarshal(repo.Outbox[2].Payload, &payload))
	assert.Equal(t, ref.ID.String(), payload.AggregateID)
	data, err := sharedEvents.DecodeData[sharedEvents.BidPlaced](payload)
	require.NoError(t, err)
	assert.Equal(t, 1500, data.Amount)
	assert.Equal(t, "carol", data.Bidder)
}

func TestPlaceBid_Rejections(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewInMemoryBidRepo()
	ref := liveRef("bob", 1000)
	repo.Refs[ref.ID] = ref
	svc := application.NewBidService(repo, nil, zap.NewNop())

	_, err := svc.PlaceBid(ctx, ref.ID, "bob", 2000)
	assert.ErrorIs(t, err, domain.ErrBidOnOwnAuction)

	_, err = svc.PlaceBid(ctx, ref.ID, "alice", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidBid)

	_, err = svc.PlaceBid(ctx, uuid.New(), "alice", 100)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	assert.Empty(t, repo.Outbox)
}

func TestPlaceBid_AfterEndIsFinished(t *testing.T) {
	repo := mocks.NewInMemoryBidRepo()
	ref := liveRef("bob", 1000)
	ref.AuctionEnd = time.Now().Add(-time.Minute)
	repo.Refs[ref.ID] = ref
	svc := application.NewBidService(repo, nil, zap.NewNop())

	bid, err := svc.PlaceBid(context.Background(), ref.ID, "alice", 5000)
	require.NoError(t, err)
	assert.Equal(t, sharedEvents.BidStatusFinished, bid.Status)
	assert.False(t, bid.Accepted())
}

func TestPlaceBid_FetchesUnknownAuctionFromCatalog(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewInMemoryBidRepo()
	ref := liveRef("bob", 1000)
	lookup := &mocks.StubAuctionLookup{Auctions: map[uuid.UUID]domain.AuctionRef{ref.ID: ref}}
	svc := application.NewBidService(repo, lookup, zap.NewNop())

	bid, err := svc.PlaceBid(ctx, ref.ID, "alice", 1500)
	require.NoError(t, err)
	assert.Equal(t, sharedEvents.BidStatusAccepted, bid.Status)
	assert.Equal(t, 1, lookup.Calls)
	assert.Contains(t, repo.Refs, ref.ID)

	// La segunda puja ya usa la copia local.
	_, err = svc.PlaceBid(ctx, ref.ID, "carol", 1600)
	require.NoError(t, err)
	assert.Equal(t, 1, lookup.Calls)
}

func TestPlaceBid_LookupFailurePropagates(t *testing.T) {
	repo := mocks.NewInMemoryBidRepo()
	lookup := &mocks.StubAuctionLookup{Err: errors.New("catalog down")}
	svc := application.NewBidService(repo, lookup, zap.NewNop())

	_, err := svc.PlaceBid(context.Background(), uuid.New(), "alice", 100)
	assert.EqualError(t, err, "catalog down")

	_, err = application.NewBidService(repo, &mocks.StubAuctionLookup{}, zap.NewNop()).
		PlaceBid(context.Background(), uuid.New(), "alice", 100)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestApplyAuctionCreated_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewInMemoryBidRepo()
	svc := application.NewBidService(repo, nil, zap.NewNop())

	evt := sharedEvents.AuctionCreated{ID: uuid.New(), Seller: "bob", ReservePrice: 100, AuctionEnd: time.Now().Add(time.Hour)}
	require.NoError(t, svc.ApplyAuctionCreated(ctx, evt))

	changed := evt
	changed.Seller = "mallory"
	require.NoError(t, svc.ApplyAuctionCreated(ctx, changed))

	assert.Len(t, repo.Refs, 1)
	assert.Equal(t, "bob", repo.Refs[evt.ID].Seller)
}

func TestBidsForAuction_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewInMemoryBidRepo()
	ref := liveRef("bob", 0)
	repo.Refs[ref.ID] = ref
	svc := application.NewBidService(repo, nil, zap.NewNop())

	_, err := svc.PlaceBid(ctx, ref.ID, "alice", 10)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = svc.PlaceBid(ctx, ref.ID, "carol", 20)
	require.NoError(t, err)

	bids, err := svc.BidsForAuction(ctx, ref.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, "carol", bids[0].Bidder)
}
