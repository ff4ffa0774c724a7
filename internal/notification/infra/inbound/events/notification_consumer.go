package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedUtils "github.com/davicafu/pujalab/internal/shared/infra/utils"
)

const ConsumerName = "notification"

type Notifier interface {
	OnAuctionCreated(ctx context.Context, evt sharedEvents.AuctionCreated) error
	OnBidPlaced(ctx context.Context, evt sharedEvents.BidPlaced) error
	OnAuctionFinished(ctx context.Context, evt sharedEvents.AuctionFinished) error
}

func NewNotificationConsumer(notifier Notifier, log *zap.Logger) *sharedUtils.EventRouter {
	return sharedUtils.NewEventRouter(5*time.Second, log.Named(ConsumerName)).
		On(sharedEvents.AuctionCreatedType, sharedUtils.UnmarshalAndHandle(notifier.OnAuctionCreated)).
		On(sharedEvents.BidPlacedType, sharedUtils.UnmarshalAndHandle(notifier.OnBidPlaced)).
		On(sharedEvents.AuctionFinishedType, sharedUtils.UnmarshalAndHandle(notifier.OnAuctionFinished))
}

func Topics() []string {
	return []string{
		sharedEvents.AuctionCreatedTopic,
		sharedEvents.BidPlacedTopic,
		sharedEvents.AuctionFinishedTopic,
	}
}
