package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	bidDomain "github.com/davicafu/pujalab/internal/bidding/domain"
	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
)

// InMemoryBidRepo simula BidRepository. Un mutex global hace de bloqueo de fila.
type InMemoryBidRepo struct {
	Refs   map[uuid.UUID]bidDomain.AuctionRef
	Bids   []*bidDomain.Bid
	Outbox []sharedDomain.OutboxEvent
	mu     sync.Mutex
}

func NewInMemoryBidRepo() *InMemoryBidRepo {
	return &InMemoryBidRepo{Refs: make(map[uuid.UUID]bidDomain.AuctionRef)}
}

func (r *InMemoryBidRepo) SaveAuctionRefIfAbsent(ctx context.Context, ref bidDomain.AuctionRef) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Refs[ref.ID]; ok {
		return false, nil
	}
	r.Refs[ref.ID] = ref
	return true, nil
}

func (r *InMemoryBidRepo) GetAuctionRef(ctx context.Context, id uuid.UUID) (*bidDomain.AuctionRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.Refs[id]
	if !ok {
		return nil, bidDomain.ErrAuctionNotFound
	}
	return &ref, nil
}

func (r *InMemoryBidRepo) PlaceBid(ctx context.Context, auctionID uuid.UUID, place bidDomain.PlaceFunc) (*bidDomain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.Refs[auctionID]
	if !ok {
		return nil, bidDomain.ErrAuctionNotFound
	}
	var highest *int
	if w := r.highestAccepted(auctionID); w != nil {
		highest = &w.Amount
	}
	bid, evts, err := place(ref, highest)
	if err != nil {
		return nil, err
	}
	r.Bids = append(r.Bids, bid)
	r.Outbox = append(r.Outbox, evts...)
	return bid, nil
}

func (r *InMemoryBidRepo) BidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]*bidDomain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bidDomain.Bid
	for _, b := range r.Bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BidTime.After(out[j].BidTime) })
	return out, nil
}

func (r *InMemoryBidRepo) FindExpiredUnfinalized(ctx context.Context, now time.Time, limit int) ([]bidDomain.AuctionRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bidDomain.AuctionRef
	for _, ref := range r.Refs {
		if !ref.Finished && !now.Before(ref.AuctionEnd) {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuctionEnd.Before(out[j].AuctionEnd) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryBidRepo) Finalize(ctx context.Context, auctionID uuid.UUID, finalize bidDomain.FinalizeFunc) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.Refs[auctionID]
	if !ok || ref.Finished {
		return false, nil
	}
	ref.Finished = true
	outcome, evts, err := finalize(ref, r.highestAccepted(auctionID))
	if err != nil {
		return false, err
	}
	ref.FinalStatus = outcome.Status
	ref.Winner = outcome.Winner
	ref.SoldAmount = outcome.Amount
	r.Refs[auctionID] = ref
	r.Outbox = append(r.Outbox, evts...)
	return true, nil
}

// highestAccepted se llama con el mutex tomado.
func (r *InMemoryBidRepo) highestAccepted(auctionID uuid.UUID) *bidDomain.Bid {
	var best *bidDomain.Bid
	for _, b := range r.Bids {
		if b.AuctionID != auctionID || !b.Accepted() {
			continue
		}
		if best == nil || b.Amount > best.Amount || (b.Amount == best.Amount && b.BidTime.Before(best.BidTime)) {
			best = b
		}
	}
	return best
}

// OutboxTypes devuelve los tipos de evento encolados, en orden.
func (r *InMemoryBidRepo) OutboxTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.Outbox))
	for _, e := range r.Outbox {
		types = append(types, e.EventType)
	}
	return types
}

var _ bidDomain.BidRepository = (*InMemoryBidRepo)(nil)

// StubAuctionLookup devuelve las subastas de Auctions y cuenta las llamadas.
type StubAuctionLookup struct {
	Auctions map[uuid.UUID]bidDomain.AuctionRef
	Err      error
	Calls    int
	mu       sync.Mutex
}

func (s *StubAuctionLookup) GetAuction(ctx context.Context, id uuid.UUID) (*bidDomain.AuctionRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	ref, ok := s.Auctions[id]
	if !ok {
		return nil, bidDomain.ErrAuctionNotFound
	}
	return &ref, nil
}

var _ bidDomain.AuctionLookup = (*StubAuctionLookup)(nil)
