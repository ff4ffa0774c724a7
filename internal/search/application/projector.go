package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/search/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// Projector mantiene la proyección de búsqueda a partir de los eventos.
// Todos los handlers son idempotentes: un evento repetido no cambia nada.
type Projector struct {
	repo domain.ItemRepository
	log  *zap.Logger
	now  func() time.Time
}

func NewProjector(repo domain.ItemRepository, log *zap.Logger) *Projector {
	return &Projector{repo: repo, log: log, now: time.Now}
}

func (p *Projector) OnAuctionCreated(ctx context.Context, env sharedEvents.IntegrationEvent, evt sharedEvents.AuctionCreated) error {
	p.log.Info("--> Consuming auction created", zap.String("auction_id", evt.ID.String()))

	item := domain.ItemFromSnapshot(evt)
	if err := item.Validate(); err != nil {
		return err
	}
	item.Stamp(domain.StampOf(env))

	inserted, err := p.repo.InsertIfAbsent(ctx, item)
	if err != nil {
		return err
	}
	if !inserted {
		p.log.Info("Item ya proyectado, se ignora", zap.String("auction_id", evt.ID.String()))
	}
	return nil
}

func (p *Projector) OnAuctionUpdated(ctx context.Context, env sharedEvents.IntegrationEvent, evt sharedEvents.AuctionUpdated) error {
	p.log.Info("--> Consuming auction updated", zap.String("auction_id", evt.ID.String()))

	if err := p.repo.ApplyUpdate(ctx, evt, domain.StampOf(env)); err != nil {
		return fmt.Errorf("apply update %s: %w", evt.ID, err)
	}
	return nil
}

func (p *Projector) OnBidPlaced(ctx context.Context, env sharedEvents.IntegrationEvent, evt sharedEvents.BidPlaced) error {
	p.log.Info("--> Consuming bid placed", zap.String("auction_id", evt.AuctionID.String()), zap.Int("amount", evt.Amount))

	if !sharedEvents.IsAcceptedBid(evt.BidStatus) {
		return nil
	}
	if _, err := p.repo.RaiseCurrentHighBid(ctx, evt.AuctionID, evt.Amount, domain.StampOf(env)); err != nil {
		return fmt.Errorf("raise high bid %s: %w", evt.AuctionID, err)
	}
	return nil
}

func (p *Projector) OnAuctionFinished(ctx context.Context, env sharedEvents.IntegrationEvent, evt sharedEvents.AuctionFinished) error {
	p.log.Info("--> Consuming auction finished", zap.String("auction_id", evt.AuctionID.String()), zap.Bool("item_sold", evt.ItemSold))

	if _, err := p.repo.MarkFinished(ctx, evt, domain.StampOf(env)); err != nil {
		return fmt.Errorf("finish %s: %w", evt.AuctionID, err)
	}
	return nil
}

func (p *Projector) Search(ctx context.Context, params domain.SearchParams) (domain.SearchResult, error) {
	return p.repo.Search(ctx, params, p.now().UTC())
}
