package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/bidding/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/tests/mocks"
)

func catalogServer(t *testing.T, known sharedEvents.AuctionCreated, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/api/auctions/" + known.ID.String():
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(known)
		case "/api/auctions/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GetAuction(t *testing.T) {
	known := sharedEvents.AuctionCreated{
		ID:           uuid.New(),
		Seller:       "bob",
		ReservePrice: 2000,
		AuctionEnd:   time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		Status:       "Live",
	}
	var hits int32
	srv := catalogServer(t, known, &hits)
	client := NewClient(srv.URL+"/", time.Second, zap.NewNop())

	ref, err := client.GetAuction(context.Background(), known.ID)
	require.NoError(t, err)
	assert.Equal(t, known.ID, ref.ID)
	assert.Equal(t, "bob", ref.Seller)
	assert.Equal(t, 2000, ref.ReservePrice)
	assert.True(t, known.AuctionEnd.Equal(ref.AuctionEnd))

	_, err = client.GetAuction(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestClient_ServerErrorIsNotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, zap.NewNop()).GetAuction(context.Background(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAuctionNotFound)
	assert.Contains(t, err.Error(), "502")
}

func TestCachedLookup_CachesHits(t *testing.T) {
	known := sharedEvents.AuctionCreated{ID: uuid.New(), Seller: "bob", AuctionEnd: time.Now().Add(time.Hour)}
	var hits int32
	srv := catalogServer(t, known, &hits)
	c := mocks.NewDummyCache()
	lookup := NewCachedLookup(NewClient(srv.URL, time.Second, zap.NewNop()), c, time.Minute, zap.NewNop())

	ref, err := lookup.GetAuction(context.Background(), known.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", ref.Seller)

	require.Eventually(t, func() bool { return c.Has(cacheKey(known.ID)) }, time.Second, 5*time.Millisecond)

	ref, err = lookup.GetAuction(context.Background(), known.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", ref.Seller)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCachedLookup_DoesNotCacheMisses(t *testing.T) {
	var hits int32
	srv := catalogServer(t, sharedEvents.AuctionCreated{ID: uuid.New()}, &hits)
	c := mocks.NewDummyCache()
	lookup := NewCachedLookup(NewClient(srv.URL, time.Second, zap.NewNop()), c, time.Minute, zap.NewNop())

	missing := uuid.New()
	for i := 0; i < 2; i++ {
		_, err := lookup.GetAuction(context.Background(), missing)
		assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.False(t, c.Has(cacheKey(missing)))
}
