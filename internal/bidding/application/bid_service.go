package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/bidding/domain"
	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// BidService define los casos de uso de las pujas.
type BidService struct {
	repo   domain.BidRepository
	lookup domain.AuctionLookup
	log    *zap.Logger
	now    func() time.Time
}

func NewBidService(repo domain.BidRepository, lookup domain.AuctionLookup, log *zap.Logger) *BidService {
	return &BidService{
		repo:   repo,
		lookup: lookup,
		log:    log,
		now:    time.Now,
	}
}

// PlaceBid registra la puja con su estado y encola BidPlaced en la misma transacción.
// Si la subasta aún no ha llegado por eventos se consulta al catálogo.
func (s *BidService) PlaceBid(ctx context.Context, auctionID uuid.UUID, bidder string, amount int) (*domain.Bid, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidBid)
	}

	bid, err := s.repo.PlaceBid(ctx, auctionID, s.decide(auctionID, bidder, amount))
	if errors.Is(err, domain.ErrAuctionNotFound) && s.lookup != nil {
		if err := s.fetchAuction(ctx, auctionID); err != nil {
			return nil, err
		}
		bid, err = s.repo.PlaceBid(ctx, auctionID, s.decide(auctionID, bidder, amount))
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Bid placed",
		zap.String("auction_id", auctionID.String()),
		zap.String("bidder", bidder),
		zap.Int("amount", amount),
		zap.String("status", bid.Status),
	)
	return bid, nil
}

func (s *BidService) decide(auctionID uuid.UUID, bidder string, amount int) domain.PlaceFunc {
	return func(ref domain.AuctionRef, highest *int) (*domain.Bid, []sharedDomain.OutboxEvent, error) {
		if ref.Seller == bidder {
			return nil, nil, domain.ErrBidOnOwnAuction
		}

		now := s.now().UTC()
		bid := &domain.Bid{
			ID:        uuid.New(),
			AuctionID: auctionID,
			Bidder:    bidder,
			Amount:    amount,
			BidTime:   now,
			Status:    domain.DecideBidStatus(ref, highest, amount, now),
		}

		evt, err := sharedDomain.NewOutboxEvent(domain.AggregateType, bid.PartitionKey(),
			sharedEvents.BidPlacedType, bid.Event(), now)
		if err != nil {
			return nil, nil, err
		}
		return bid, []sharedDomain.OutboxEvent{evt}, nil
	}
}

func (s *BidService) fetchAuction(ctx context.Context, auctionID uuid.UUID) error {
	ref, err := s.lookup.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if _, err := s.repo.SaveAuctionRefIfAbsent(ctx, *ref); err != nil {
		return err
	}
	s.log.Info("Auction fetched from catalog", zap.String("auction_id", auctionID.String()))
	return nil
}

func (s *BidService) BidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	return s.repo.BidsForAuction(ctx, auctionID)
}

// ApplyAuctionCreated guarda la referencia local. Un duplicado no cambia nada.
func (s *BidService) ApplyAuctionCreated(ctx context.Context, evt sharedEvents.AuctionCreated) error {
	inserted, err := s.repo.SaveAuctionRefIfAbsent(ctx, domain.AuctionRefFromCreated(evt))
	if err != nil {
		return err
	}
	if !inserted {
		s.log.Info("Evento 'AuctionCreated' duplicado ignorado", zap.String("auction_id", evt.ID.String()))
	}
	return nil
}
