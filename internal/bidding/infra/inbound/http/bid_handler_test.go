package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/bidding/application"
	"github.com/davicafu/pujalab/internal/bidding/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/pkg/utils"
	"github.com/davicafu/pujalab/tests/mocks"
)

func setupRouter(t *testing.T) (*gin.Engine, *mocks.InMemoryBidRepo, domain.AuctionRef) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := mocks.NewInMemoryBidRepo()
	ref := domain.AuctionRef{ID: uuid.New(), Seller: "bob", AuctionEnd: time.Now().Add(time.Hour), ReservePrice: 1000}
	repo.Refs[ref.ID] = ref

	r := gin.New()
	RegisterBidRoutes(r, NewBidHandler(application.NewBidService(repo, nil, zap.NewNop()), zap.NewNop()))
	return r, repo, ref
}

func placeBid(r *gin.Engine, user, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/bids?"+query, nil)
	if user != "" {
		req.Header.Set(utils.UserHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPlaceBidEndpoint(t *testing.T) {
	r, _, ref := setupRouter(t)

	w := placeBid(r, "alice", "auctionId="+ref.ID.String()+"&amount=1500")
	require.Equal(t, http.StatusOK, w.Code)

	var body sharedEvents.BidPlaced
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.Bidder)
	assert.Equal(t, 1500, body.Amount)
	assert.Equal(t, sharedEvents.BidStatusAccepted, body.BidStatus)
	assert.Equal(t, ref.ID, body.AuctionID)
}

func TestPlaceBidEndpoint_Errors(t *testing.T) {
	r, repo, ref := setupRouter(t)

	tests := []struct {
		name  string
		user  string
		query string
		want  int
	}{
		{"sin usuario", "", "auctionId=" + ref.ID.String() + "&amount=10", http.StatusUnauthorized},
		{"id inválido", "alice", "auctionId=nope&amount=10", http.StatusBadRequest},
		{"importe inválido", "alice", "auctionId=" + ref.ID.String() + "&amount=abc", http.StatusBadRequest},
		{"importe cero", "alice", "auctionId=" + ref.ID.String() + "&amount=0", http.StatusBadRequest},
		{"subasta propia", "bob", "auctionId=" + ref.ID.String() + "&amount=10", http.StatusBadRequest},
		{"subasta desconocida", "alice", "auctionId=" + uuid.NewString() + "&amount=10", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, placeBid(r, tt.user, tt.query).Code)
		})
	}
	assert.Empty(t, repo.Bids)
}

func TestBidsForAuctionEndpoint(t *testing.T) {
	r, _, ref := setupRouter(t)
	require.Equal(t, http.StatusOK, placeBid(r, "alice", "auctionId="+ref.ID.String()+"&amount=100").Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bids/"+ref.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body []sharedEvents.BidPlaced
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, sharedEvents.BidStatusAcceptedBelowReserve, body[0].BidStatus)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bids/nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
