package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	auctionDomain "github.com/davicafu/pujalab/internal/auction/domain"
	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
)

// InMemoryAuctionRepo simula AuctionRepository con outbox incluido.
type InMemoryAuctionRepo struct {
	Auctions map[uuid.UUID]auctionDomain.Auction
	Outbox   []sharedDomain.OutboxEvent
	// FailWith hace fallar las escrituras transaccionales (Create/Update).
	FailWith error
	mu       sync.Mutex
}

func NewInMemoryAuctionRepo() *InMemoryAuctionRepo {
	return &InMemoryAuctionRepo{Auctions: make(map[uuid.UUID]auctionDomain.Auction)}
}

func (r *InMemoryAuctionRepo) Create(ctx context.Context, a *auctionDomain.Auction, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	if _, ok := r.Auctions[a.ID]; ok {
		return auctionDomain.ErrAuctionAlreadyExists
	}
	r.Auctions[a.ID] = *a
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryAuctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*auctionDomain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.Auctions[id]
	if !ok {
		return nil, auctionDomain.ErrAuctionNotFound
	}
	return &a, nil
}

func (r *InMemoryAuctionRepo) Update(ctx context.Context, a *auctionDomain.Auction, evts ...sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	stored, ok := r.Auctions[a.ID]
	if !ok {
		return auctionDomain.ErrAuctionNotFound
	}
	stored.Item = a.Item
	stored.UpdatedAt = a.UpdatedAt
	r.Auctions[a.ID] = stored
	r.Outbox = append(r.Outbox, evts...)
	return nil
}

func (r *InMemoryAuctionRepo) ListUpdatedSince(ctx context.Context, since *time.Time) ([]*auctionDomain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auctionDomain.Auction
	for _, a := range r.Auctions {
		if since != nil && !a.UpdatedAt.After(*since) {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Item.Make != out[j].Item.Make {
			return out[i].Item.Make < out[j].Item.Make
		}
		return out[i].Item.Model < out[j].Item.Model
	})
	return out, nil
}

func (r *InMemoryAuctionRepo) RaiseCurrentHighBid(ctx context.Context, id uuid.UUID, amount int, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.Auctions[id]
	if !ok {
		return false, nil
	}
	if !a.RaiseHighBid(amount, at) {
		return false, nil
	}
	r.Auctions[id] = a
	return true, nil
}

func (r *InMemoryAuctionRepo) FinishIfLive(ctx context.Context, a *auctionDomain.Auction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.Auctions[a.ID]
	if !ok || !stored.IsLive() {
		return false, nil
	}
	stored.Status = a.Status
	stored.Winner = a.Winner
	stored.SoldAmount = a.SoldAmount
	stored.UpdatedAt = a.UpdatedAt
	r.Auctions[a.ID] = stored
	return true, nil
}

// Put guarda una subasta sin pasar por el outbox.
func (r *InMemoryAuctionRepo) Put(a *auctionDomain.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Auctions[a.ID] = *a
}

var _ auctionDomain.AuctionRepository = (*InMemoryAuctionRepo)(nil)
