package contracts

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	auctionApp "github.com/davicafu/pujalab/internal/auction/application"
	auctionDomain "github.com/davicafu/pujalab/internal/auction/domain"
	auctionHttp "github.com/davicafu/pujalab/internal/auction/infra/inbound/http"
	bidDomain "github.com/davicafu/pujalab/internal/bidding/domain"
	"github.com/davicafu/pujalab/internal/bidding/infra/outbound/lookup"
	"github.com/davicafu/pujalab/internal/search/infra/outbound/auctionsvc"
	"github.com/davicafu/pujalab/tests/mocks"
)

// catalogServer sirve la API real del catálogo sobre un repositorio en memoria.
func catalogServer(t *testing.T) (*httptest.Server, *auctionApp.AuctionService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service := auctionApp.NewAuctionService(mocks.NewInMemoryAuctionRepo(), zap.NewNop())
	r := gin.New()
	auctionHttp.RegisterAuctionRoutes(r, auctionHttp.NewAuctionHandler(service, zap.NewNop()))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, service
}

func createAuction(t *testing.T, service *auctionApp.AuctionService, model string) *auctionDomain.Auction {
	t.Helper()
	a, err := service.CreateAuction(context.Background(), "bob", auctionApp.CreateAuctionInput{
		Item:         auctionDomain.Item{Make: "Ford", Model: model, Color: "Blue", Year: 2019, Mileage: 1000},
		ReservePrice: 20000,
		AuctionEnd:   time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond),
	})
	require.NoError(t, err)
	return a
}

// El cliente de pujas entiende la respuesta de GET /api/auctions/:id.
func TestLookupClient_ReadsCatalogResponse(t *testing.T) {
	srv, service := catalogServer(t)
	a := createAuction(t, service, "GT")

	client := lookup.NewClient(srv.URL, time.Second, zap.NewNop())
	ref, err := client.GetAuction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, ref.ID)
	assert.Equal(t, "bob", ref.Seller)
	assert.Equal(t, 20000, ref.ReservePrice)
	assert.True(t, a.AuctionEnd.Equal(ref.AuctionEnd))

	_, err = client.GetAuction(context.Background(), uuid.New())
	assert.ErrorIs(t, err, bidDomain.ErrAuctionNotFound)
}

// La puesta al día de la búsqueda entiende la respuesta de GET /items?since=.
func TestAuctionSourceClient_ReadsCatalogChanges(t *testing.T) {
	srv, service := catalogServer(t)
	first := createAuction(t, service, "GT")
	second := createAuction(t, service, "Focus")

	client := auctionsvc.NewClient(srv.URL, time.Second, 10*time.Millisecond, zap.NewNop())
	all, err := client.FetchChangesSince(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	ids := []uuid.UUID{all[0].ID, all[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, ids)

	future := time.Now().Add(time.Hour)
	none, err := client.FetchChangesSince(context.Background(), &future)
	require.NoError(t, err)
	assert.Empty(t, none)
}
