package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedUtils "github.com/davicafu/pujalab/internal/shared/infra/utils"
)

// ConsumerName identifica a la búsqueda en los topics de dead-letter.
const ConsumerName = "search"

type Projector interface {
	OnAuctionCreated(ctx context.Context, env sharedEvents.IntegrationEvent, evt sharedEvents.AuctionCreated) error
	OnAuctionUpdated(ctx context.Context, env sharedEvents.IntegrationEvent, evt sharedEvents.AuctionUpdated) error
	OnBidPlaced(ctx context.Context, env sharedEvents.IntegrationEvent, evt sharedEvents.BidPlaced) error
	OnAuctionFinished(ctx context.Context, env sharedEvents.IntegrationEvent, evt sharedEvents.AuctionFinished) error
}

// NewSearchConsumer proyecta los cuatro eventos del mercado en la búsqueda.
func NewSearchConsumer(projector Projector, log *zap.Logger) *sharedUtils.EventRouter {
	return sharedUtils.NewEventRouter(5*time.Second, log.Named(ConsumerName)).
		On(sharedEvents.AuctionCreatedType, sharedUtils.UnmarshalWithEnvelope(projector.OnAuctionCreated)).
		On(sharedEvents.AuctionUpdatedType, sharedUtils.UnmarshalWithEnvelope(projector.OnAuctionUpdated)).
		On(sharedEvents.BidPlacedType, sharedUtils.UnmarshalWithEnvelope(projector.OnBidPlaced)).
		On(sharedEvents.AuctionFinishedType, sharedUtils.UnmarshalWithEnvelope(projector.OnAuctionFinished))
}

func Topics() []string {
	return []string{
		sharedEvents.AuctionCreatedTopic,
		sharedEvents.AuctionUpdatedTopic,
		sharedEvents.BidPlacedTopic,
		sharedEvents.AuctionFinishedTopic,
	}
}
