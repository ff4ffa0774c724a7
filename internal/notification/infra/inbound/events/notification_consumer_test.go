package events

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/notification/application"
	notificationHTTP "github.com/davicafu/pujalab/internal/notification/infra/inbound/http"
	"github.com/davicafu/pujalab/internal/notification/infra/websocket"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/internal/shared/domain/faults"
)

func TestNotificationConsumer_BidReachesSubscriber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := websocket.NewHub(zap.NewNop())
	defer hub.Close()
	r := gin.New()
	notificationHTTP.RegisterNotificationRoutes(r, hub)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/notifications", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	consumer := NewNotificationConsumer(application.NewNotifier(hub, zap.NewNop()), zap.NewNop())
	auctionID := uuid.New()
	evt, err := sharedEvents.NewIntegrationEvent(sharedEvents.BidPlacedType, auctionID.String(),
		sharedEvents.BidPlaced{ID: uuid.New(), AuctionID: auctionID, Bidder: "alice", Amount: 500, BidStatus: sharedEvents.BidStatusAccepted}, time.Now())
	require.NoError(t, err)
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	require.NoError(t, consumer.HandleMessage(context.Background(), auctionID.String(), raw))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var got struct {
		Event string                 `json:"event"`
		Data  sharedEvents.BidPlaced `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, application.BidPlacedEvent, got.Event)
	assert.Equal(t, auctionID, got.Data.AuctionID)
	assert.Equal(t, 500, got.Data.Amount)
}

func TestNotificationConsumer_MalformedIsPermanent(t *testing.T) {
	consumer := NewNotificationConsumer(application.NewNotifier(websocket.NewHub(zap.NewNop()), zap.NewNop()), zap.NewNop())
	err := consumer.HandleMessage(context.Background(), "k", []byte("{"))
	require.Error(t, err)
	assert.True(t, faults.IsPermanent(err))
}

func TestNotificationConsumerTopics(t *testing.T) {
	assert.ElementsMatch(t, []string{"auction-created", "bid-placed", "auction-finished"}, Topics())
}
