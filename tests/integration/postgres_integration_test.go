package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	auctionApp "github.com/davicafu/pujalab/internal/auction/application"
	auctionDomain "github.com/davicafu/pujalab/internal/auction/domain"
	auctionRepo "github.com/davicafu/pujalab/internal/auction/infra/outbound/db/sqldb"
	bidApp "github.com/davicafu/pujalab/internal/bidding/application"
	bidRepo "github.com/davicafu/pujalab/internal/bidding/infra/outbound/db/sqldb"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedDB "github.com/davicafu/pujalab/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/pujalab/internal/shared/infra/platform/leader"
	"github.com/davicafu/pujalab/tests/mocks"
)

// setupPostgresStore se conecta a Postgres, crea el esquema y limpia las tablas.
func setupPostgresStore(t *testing.T) *sharedDB.Store {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		t.Skip("DATABASE_URL no está configurada, saltando test de integración con Postgres")
	}
	ctx := context.Background()

	db, err := sharedDB.Open(ctx, sharedDB.Postgres, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := sharedDB.NewStore(db, sharedDB.Postgres)
	require.NoError(t, store.Migrate(ctx, auctionRepo.Schema(sharedDB.Postgres)))
	require.NoError(t, store.Migrate(ctx, bidRepo.Schema(sharedDB.Postgres)))

	// ❗ Limpiar las tablas antes de cada test para asegurar el aislamiento
	_, err = db.Exec(`TRUNCATE TABLE auctions, auction_refs, bids, outbox`)
	require.NoError(t, err)
	return store
}

func TestPostgres_CreateAuctionStagesEvent(t *testing.T) {
	ctx := context.Background()
	store := setupPostgresStore(t)
	service := auctionApp.NewAuctionService(auctionRepo.NewAuctionRepo(store, sharedDB.NewOutboxRepo(store)), zap.NewNop())

	auction, err := service.CreateAuction(ctx, "bob", auctionApp.CreateAuctionInput{
		Item:         auctionDomain.Item{Make: "Ford", Model: "GT", Color: "White", Year: 2020, Mileage: 100},
		ReservePrice: 20000,
		AuctionEnd:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	got, err := service.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, "GT", got.Item.Model)
	assert.Equal(t, []string{sharedEvents.AuctionCreatedType}, mocks.PendingOutbox(t, store))

	// Un BidPlaced repetido no cambia la puja más alta dos veces.
	bid := sharedEvents.BidPlaced{ID: uuid.New(), AuctionID: auction.ID, Bidder: "alice", Amount: 25000, BidStatus: sharedEvents.BidStatusAccepted}
	require.NoError(t, service.ApplyBidPlaced(ctx, bid))
	require.NoError(t, service.ApplyBidPlaced(ctx, bid))
	got, err = service.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentHighBid)
	assert.Equal(t, 25000, *got.CurrentHighBid)
}

func TestPostgres_BidAndFinalize(t *testing.T) {
	ctx := context.Background()
	store := setupPostgresStore(t)
	repo := bidRepo.NewBidRepo(store, sharedDB.NewOutboxRepo(store))
	service := bidApp.NewBidService(repo, &mocks.StubAuctionLookup{}, zap.NewNop())

	id := uuid.New()
	require.NoError(t, service.ApplyAuctionCreated(ctx, sharedEvents.AuctionCreated{
		ID: id, Seller: "bob", ReservePrice: 25000, AuctionEnd: time.Now().Add(300 * time.Millisecond), Status: "Live",
	}))

	first, err := service.PlaceBid(ctx, id, "alice", 20000)
	require.NoError(t, err)
	assert.Equal(t, sharedEvents.BidStatusAcceptedBelowReserve, first.Status)
	second, err := service.PlaceBid(ctx, id, "carol", 30000)
	require.NoError(t, err)
	assert.Equal(t, sharedEvents.BidStatusAccepted, second.Status)

	time.Sleep(400 * time.Millisecond)
	finalizer := bidApp.NewFinalizer(repo, leader.AlwaysLeader{}, time.Second, 10, zap.NewNop())
	assert.Equal(t, 1, finalizer.RunOnce(ctx))
	assert.Equal(t, 0, finalizer.RunOnce(ctx))

	late, err := service.PlaceBid(ctx, id, "dave", 40000)
	require.NoError(t, err)
	assert.Equal(t, sharedEvents.BidStatusFinished, late.Status)

	assert.Equal(t, []string{
		sharedEvents.BidPlacedType,
		sharedEvents.BidPlacedType,
		sharedEvents.AuctionFinishedType,
		sharedEvents.BidPlacedType,
	}, mocks.PendingOutbox(t, store))
}
