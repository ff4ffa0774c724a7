package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

type sent struct {
	event string
	data  interface{}
}

type recordingBroadcaster struct {
	sent []sent
}

func (r *recordingBroadcaster) Broadcast(event string, data interface{}) int {
	r.sent = append(r.sent, sent{event, data})
	return 1
}

func TestNotifier_ForwardsEachEventType(t *testing.T) {
	ctx := context.Background()
	out := &recordingBroadcaster{}
	n := NewNotifier(out, zap.NewNop())
	id := uuid.New()

	require.NoError(t, n.OnAuctionCreated(ctx, sharedEvents.AuctionCreated{ID: id}))
	require.NoError(t, n.OnBidPlaced(ctx, sharedEvents.BidPlaced{AuctionID: id, Amount: 10}))
	require.NoError(t, n.OnAuctionFinished(ctx, sharedEvents.AuctionFinished{AuctionID: id}))

	require.Len(t, out.sent, 3)
	assert.Equal(t, AuctionCreatedEvent, out.sent[0].event)
	assert.Equal(t, BidPlacedEvent, out.sent[1].event)
	assert.Equal(t, AuctionFinishedEvent, out.sent[2].event)
	assert.Equal(t, 10, out.sent[1].data.(sharedEvents.BidPlaced).Amount)
}
