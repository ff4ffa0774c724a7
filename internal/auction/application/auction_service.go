package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/auction/domain"
	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// AuctionService define los casos de uso del catálogo de subastas.
type AuctionService struct {
	repo domain.AuctionRepository
	log  *zap.Logger
	now  func() time.Time
}

func NewAuctionService(repo domain.AuctionRepository, log *zap.Logger) *AuctionService {
	return &AuctionService{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

type CreateAuctionInput struct {
	Item         domain.Item
	ReservePrice int
	AuctionEnd   time.Time
}

// CreateAuction guarda la subasta y encola AuctionCreated en la misma transacción.
func (s *AuctionService) CreateAuction(ctx context.Context, seller string, in CreateAuctionInput) (*domain.Auction, error) {
	now := s.now()
	auction, err := domain.NewAuction(seller, in.Item, in.ReservePrice, in.AuctionEnd, now)
	if err != nil {
		return nil, err
	}

	evt, err := sharedDomain.NewOutboxEvent(domain.AggregateType, auction.ID.String(),
		sharedEvents.AuctionCreatedType, auction.Snapshot(), now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, auction, evt); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	s.log.Info("Auction created", zap.String("auction_id", auction.ID.String()), zap.String("seller", seller))
	return auction, nil
}

// UpdateAuction aplica un cambio parcial del vendedor. Solo se publica
// AuctionUpdated si algún campo cambió de verdad.
func (s *AuctionService) UpdateAuction(ctx context.Context, id uuid.UUID, user string, patch domain.ItemPatch) (*domain.Auction, error) {
	auction, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if auction.Seller != user {
		return nil, domain.ErrNotSeller
	}
	if !auction.IsLive() {
		return nil, domain.ErrAuctionNotLive
	}

	now := s.now()
	updated, changed := auction.ApplyPatch(patch, now)
	if !changed {
		return auction, nil
	}

	evt, err := sharedDomain.NewOutboxEvent(domain.AggregateType, auction.ID.String(),
		sharedEvents.AuctionUpdatedType, updated, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, auction, evt); err != nil {
		return nil, fmt.Errorf("update auction: %w", err)
	}
	return auction, nil
}

func (s *AuctionService) GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return s.repo.GetByID(ctx, id)
}

// ListUpdatedSince alimenta la sincronización de las proyecciones.
func (s *AuctionService) ListUpdatedSince(ctx context.Context, since *time.Time) ([]*domain.Auction, error) {
	return s.repo.ListUpdatedSince(ctx, since)
}

// ApplyBidPlaced sube la puja más alta del catálogo. Pujas no aceptadas,
// menores o repetidas no cambian nada.
func (s *AuctionService) ApplyBidPlaced(ctx context.Context, bid sharedEvents.BidPlaced) error {
	if !sharedEvents.IsAcceptedBid(bid.BidStatus) {
		return nil
	}

	raised, err := s.repo.RaiseCurrentHighBid(ctx, bid.AuctionID, bid.Amount, s.now())
	if err != nil {
		return err
	}
	if raised {
		return nil
	}

	// Sin cambios: o no supera la actual, o la subasta aún no existe aquí.
	if _, err := s.repo.GetByID(ctx, bid.AuctionID); err != nil {
		return fmt.Errorf("apply bid %s: %w", bid.ID, err)
	}
	s.log.Debug("Bid does not raise the current high bid",
		zap.String("auction_id", bid.AuctionID.String()), zap.Int("amount", bid.Amount))
	return nil
}

// ApplyAuctionFinished deja la subasta en su estado terminal. Un segundo cierre es un no-op.
func (s *AuctionService) ApplyAuctionFinished(ctx context.Context, evt sharedEvents.AuctionFinished) error {
	auction, err := s.repo.GetByID(ctx, evt.AuctionID)
	if err != nil {
		return fmt.Errorf("finish auction %s: %w", evt.AuctionID, err)
	}

	if !auction.Finish(evt.Winner, evt.Amount, s.now()) {
		s.log.Info("Duplicate AuctionFinished ignored", zap.String("auction_id", auction.ID.String()))
		return nil
	}

	finished, err := s.repo.FinishIfLive(ctx, auction)
	if err != nil {
		return err
	}
	if finished {
		s.log.Info("🏁 Auction finished",
			zap.String("auction_id", auction.ID.String()),
			zap.String("status", string(auction.Status)),
			zap.String("winner", auction.Winner),
		)
	}
	return nil
}
