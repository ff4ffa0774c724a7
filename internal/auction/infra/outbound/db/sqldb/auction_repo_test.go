package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/pujalab/internal/auction/domain"
	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedDB "github.com/davicafu/pujalab/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/pujalab/tests/mocks"
)

func setupRepo(t *testing.T) (*AuctionRepo, *sharedDB.Store) {
	t.Helper()
	store := mocks.NewSQLiteStore(t, Schema(sharedDB.SQLite))
	return NewAuctionRepo(store, sharedDB.NewOutboxRepo(store)), store
}

func newAuction(t *testing.T, brand, model string, reserve int) *domain.Auction {
	t.Helper()
	now := time.Now()
	a, err := domain.NewAuction("bob", domain.Item{Make: brand, Model: model, Color: "Red", Year: 2019, Mileage: 1000}, reserve, now.Add(time.Hour), now)
	require.NoError(t, err)
	return a
}

func createdEvent(t *testing.T, a *domain.Auction) sharedDomain.OutboxEvent {
	t.Helper()
	evt, err := sharedDomain.NewOutboxEvent(domain.AggregateType, a.ID.String(), sharedEvents.AuctionCreatedType, a.Snapshot(), a.CreatedAt)
	require.NoError(t, err)
	return evt
}

func TestAuctionRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo, store := setupRepo(t)
	a := newAuction(t, "Ford", "GT", 20000)

	require.NoError(t, repo.Create(ctx, a, createdEvent(t, a)))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, domain.StatusLive, got.Status)
	assert.Equal(t, "GT", got.Item.Model)
	assert.Nil(t, got.CurrentHighBid)
	assert.True(t, a.AuctionEnd.Equal(got.AuctionEnd))

	assert.Equal(t, []string{sharedEvents.AuctionCreatedType}, mocks.PendingOutbox(t, store))
}

func TestAuctionRepo_CreateDuplicateStagesNothing(t *testing.T) {
	ctx := context.Background()
	repo, store := setupRepo(t)
	a := newAuction(t, "Ford", "GT", 0)
	require.NoError(t, repo.Create(ctx, a, createdEvent(t, a)))

	err := repo.Create(ctx, a, createdEvent(t, a))

	assert.ErrorIs(t, err, domain.ErrAuctionAlreadyExists)
	assert.Len(t, mocks.PendingOutbox(t, store), 1)
}

func TestAuctionRepo_GetByID_NotFound(t *testing.T) {
	repo, _ := setupRepo(t)
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestAuctionRepo_UpdateMissingRollsBackEvent(t *testing.T) {
	ctx := context.Background()
	repo, store := setupRepo(t)
	ghost := newAuction(t, "Ford", "GT", 0)

	err := repo.Update(ctx, ghost, createdEvent(t, ghost))

	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
	assert.Empty(t, mocks.PendingOutbox(t, store))
}

func TestAuctionRepo_ListUpdatedSince_OrderedByMake(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	for _, mk := range [][2]string{{"Mercedes", "SLK"}, {"Audi", "R8"}, {"Ford", "GT"}, {"Audi", "A4"}} {
		a := newAuction(t, mk[0], mk[1], 0)
		require.NoError(t, repo.Create(ctx, a, createdEvent(t, a)))
	}

	all, err := repo.ListUpdatedSince(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	var got []string
	for _, a := range all {
		got = append(got, a.Item.Make+" "+a.Item.Model)
	}
	assert.Equal(t, []string{"Audi A4", "Audi R8", "Ford GT", "Mercedes SLK"}, got)

	future := time.Now().Add(time.Hour)
	none, err := repo.ListUpdatedSince(ctx, &future)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAuctionRepo_RaiseCurrentHighBid(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)
	a := newAuction(t, "Ford", "GT", 0)
	require.NoError(t, repo.Create(ctx, a, createdEvent(t, a)))
	now := time.Now()

	raised, err := repo.RaiseCurrentHighBid(ctx, a.ID, 100, now)
	require.NoError(t, err)
	assert.True(t, raised)

	// Redelivery y pujas menores no cambian nada.
	for _, amount := range []int{100, 90} {
		raised, err = repo.RaiseCurrentHighBid(ctx, a.ID, amount, now)
		require.NoError(t, err)
		assert.False(t, raised)
	}

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, *got.CurrentHighBid)
}

func TestAuctionRepo_FinishIfLive_Once(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)
	a := newAuction(t, "Ford", "GT", 25000)
	require.NoError(t, repo.Create(ctx, a, createdEvent(t, a)))

	amount := 30000
	a.Finish("alice", &amount, time.Now())
	ok, err := repo.FinishIfLive(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.FinishIfLive(ctx, a)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, got.Status)
	assert.Equal(t, "alice", got.Winner)
	assert.Equal(t, 30000, *got.SoldAmount)

	raised, err := repo.RaiseCurrentHighBid(ctx, a.ID, 50000, time.Now())
	require.NoError(t, err)
	assert.False(t, raised)
}
