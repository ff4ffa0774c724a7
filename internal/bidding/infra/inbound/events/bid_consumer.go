package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedUtils "github.com/davicafu/pujalab/internal/shared/infra/utils"
)

const ConsumerName = "bidding"

type BidService interface {
	ApplyAuctionCreated(ctx context.Context, evt sharedEvents.AuctionCreated) error
}

// NewBidConsumer guarda la copia local de cada subasta creada.
func NewBidConsumer(service BidService, log *zap.Logger) *sharedUtils.EventRouter {
	return sharedUtils.NewEventRouter(5*time.Second, log.Named(ConsumerName)).
		On(sharedEvents.AuctionCreatedType, sharedUtils.UnmarshalAndHandle(service.ApplyAuctionCreated))
}

func Topics() []string {
	return []string{sharedEvents.AuctionCreatedTopic}
}
