package application

import (
	"context"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// Nombres de evento tal y como los ven los clientes del websocket.
const (
	AuctionCreatedEvent  = "AuctionCreated"
	BidPlacedEvent       = "BidPlaced"
	AuctionFinishedEvent = "AuctionFinished"
)

type Broadcaster interface {
	Broadcast(event string, data interface{}) int
}

// Notifier reenvía los eventos del mercado a los clientes conectados.
// No guarda estado, así que repetir una entrega solo repite el aviso.
type Notifier struct {
	out Broadcaster
	log *zap.Logger
}

func NewNotifier(out Broadcaster, log *zap.Logger) *Notifier {
	return &Notifier{out: out, log: log}
}

func (n *Notifier) OnAuctionCreated(ctx context.Context, evt sharedEvents.AuctionCreated) error {
	n.notify(AuctionCreatedEvent, evt)
	return nil
}

func (n *Notifier) OnBidPlaced(ctx context.Context, evt sharedEvents.BidPlaced) error {
	n.notify(BidPlacedEvent, evt)
	return nil
}

func (n *Notifier) OnAuctionFinished(ctx context.Context, evt sharedEvents.AuctionFinished) error {
	n.notify(AuctionFinishedEvent, evt)
	return nil
}

func (n *Notifier) notify(event string, data interface{}) {
	sent := n.out.Broadcast(event, data)
	n.log.Debug("📣 Notification sent", zap.String("event", event), zap.Int("clients", sent))
}
