package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedUtils "github.com/davicafu/pujalab/internal/shared/infra/utils"
)

// ConsumerName identifica al catálogo en los topics de dead-letter.
const ConsumerName = "auction"

// AuctionService son los casos de uso que el catálogo aplica desde eventos.
type AuctionService interface {
	ApplyBidPlaced(ctx context.Context, bid sharedEvents.BidPlaced) error
	ApplyAuctionFinished(ctx context.Context, evt sharedEvents.AuctionFinished) error
}

type FaultHandler interface {
	HandleAuctionCreatedFault(ctx context.Context, fault sharedEvents.Fault) error
}

// NewAuctionConsumer recibe pujas, cierres y los Fault de los AuctionCreated del catálogo.
func NewAuctionConsumer(service AuctionService, faultHandler FaultHandler, log *zap.Logger) *sharedUtils.EventRouter {
	return sharedUtils.NewEventRouter(5*time.Second, log.Named(ConsumerName)).
		On(sharedEvents.BidPlacedType, sharedUtils.UnmarshalAndHandle(service.ApplyBidPlaced)).
		On(sharedEvents.AuctionFinishedType, sharedUtils.UnmarshalAndHandle(service.ApplyAuctionFinished)).
		On(sharedEvents.FaultType(sharedEvents.AuctionCreatedType), sharedUtils.UnmarshalAndHandle(faultHandler.HandleAuctionCreatedFault))
}

// Topics son los topics a los que se suscribe el catálogo.
func Topics() []string {
	return []string{
		sharedEvents.BidPlacedTopic,
		sharedEvents.AuctionFinishedTopic,
		sharedEvents.FaultTopic(sharedEvents.AuctionCreatedTopic),
	}
}
