package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/auction/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/internal/shared/domain/faults"
	"github.com/davicafu/pujalab/tests/mocks"
)

func poisonedAuction(t *testing.T, repo *mocks.InMemoryAuctionRepo) *domain.Auction {
	t.Helper()
	now := time.Now()
	a, err := domain.NewAuction("bob", domain.Item{Make: "Ford", Model: "foo", Year: 2020}, 0, now.Add(time.Hour), now)
	require.NoError(t, err)
	repo.Put(a)
	return a
}

func faultFor(t *testing.T, a *domain.Auction, reason faults.Reason, field string) sharedEvents.Fault {
	t.Helper()
	original, err := sharedEvents.NewIntegrationEvent(sharedEvents.AuctionCreatedType, a.ID.String(), a.Snapshot(), a.CreatedAt)
	require.NoError(t, err)
	return sharedEvents.Fault{
		FaultID:   uuid.New(),
		Message:   original,
		Consumer:  "search",
		Reason:    string(reason),
		Field:     field,
		Detail:    "model foo is not allowed",
		Attempts:  5,
		FaultedAt: time.Now(),
	}
}

func TestFaultHandler_CorrectsModelAndRestages(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewInMemoryAuctionRepo()
	a := poisonedAuction(t, repo)
	handler := NewFaultHandler(repo, zap.NewNop())

	require.NoError(t, handler.HandleAuctionCreatedFault(ctx, faultFor(t, a, faults.ReasonValidation, "model")))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ReplacementModel, got.Item.Model)

	require.Len(t, repo.Outbox, 1)
	assert.Equal(t, sharedEvents.AuctionCreatedType, repo.Outbox[0].EventType)
	envelope, err := sharedEvents.Decode(repo.Outbox[0].Payload)
	require.NoError(t, err)
	corrected, err := sharedEvents.DecodeData[sharedEvents.AuctionCreated](envelope)
	require.NoError(t, err)
	assert.Equal(t, ReplacementModel, corrected.Model)
	assert.Equal(t, a.ID, corrected.ID)
}

func TestFaultHandler_SecondFaultIsNoOp(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewInMemoryAuctionRepo()
	a := poisonedAuction(t, repo)
	handler := NewFaultHandler(repo, zap.NewNop())
	fault := faultFor(t, a, faults.ReasonValidation, "model")

	require.NoError(t, handler.HandleAuctionCreatedFault(ctx, fault))
	require.NoError(t, handler.HandleAuctionCreatedFault(ctx, fault))

	assert.Len(t, repo.Outbox, 1)
}

func TestFaultHandler_UnknownFaultIsOnlyLogged(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewInMemoryAuctionRepo()
	a := poisonedAuction(t, repo)
	handler := NewFaultHandler(repo, zap.NewNop())

	for _, f := range []sharedEvents.Fault{
		faultFor(t, a, faults.ReasonUnknown, ""),
		faultFor(t, a, faults.ReasonValidation, "color"),
	} {
		require.NoError(t, handler.HandleAuctionCreatedFault(ctx, f))
	}

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "foo", got.Item.Model)
	assert.Empty(t, repo.Outbox)
}

func TestFaultHandler_CustomRules(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewInMemoryAuctionRepo()
	a := poisonedAuction(t, repo)
	handler := NewFaultHandler(repo, zap.NewNop(), CorrectionRule{
		Reason: faults.ReasonValidation,
		Field:  "color",
		Correct: func(a *domain.Auction) bool {
			a.Item.Color = "Unknown"
			return true
		},
	})

	require.NoError(t, handler.HandleAuctionCreatedFault(ctx, faultFor(t, a, faults.ReasonValidation, "color")))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", got.Item.Color)
	assert.Equal(t, "foo", got.Item.Model, "la regla por defecto no se aplica")
}

func TestFaultHandler_MalformedOriginal(t *testing.T) {
	repo := mocks.NewInMemoryAuctionRepo()
	handler := NewFaultHandler(repo, zap.NewNop())
	fault := sharedEvents.Fault{
		Message: sharedEvents.IntegrationEvent{Type: sharedEvents.AuctionCreatedType, Data: []byte(`"not an object"`)},
		Reason:  string(faults.ReasonValidation),
		Field:   "model",
	}

	err := handler.HandleAuctionCreatedFault(context.Background(), fault)
	assert.True(t, faults.IsPermanent(err))
}
