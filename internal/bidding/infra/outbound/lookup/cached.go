package lookup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/bidding/domain"
	"github.com/davicafu/pujalab/internal/shared/infra/platform/cache"
)

// CachedLookup pone una caché delante de otro AuctionLookup (cache-aside).
type CachedLookup struct {
	next  domain.AuctionLookup
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

var _ domain.AuctionLookup = (*CachedLookup)(nil)

func NewCachedLookup(next domain.AuctionLookup, c cache.Cache, ttl time.Duration, log *zap.Logger) *CachedLookup {
	return &CachedLookup{next: next, cache: c, ttl: ttl, log: log}
}

func cacheKey(id uuid.UUID) string {
	return "auction:" + id.String()
}

func (l *CachedLookup) GetAuction(ctx context.Context, id uuid.UUID) (*domain.AuctionRef, error) {
	// 1. Intentar cache
	var ref domain.AuctionRef
	ok, err := l.cache.Get(ctx, cacheKey(id), &ref)
	if err != nil {
		l.log.Warn("Cache read failed", zap.String("auction_id", id.String()), zap.Error(err))
	}
	if ok {
		return &ref, nil
	}

	// 2. Ir al catálogo
	found, err := l.next.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3. Actualizar cache en background
	cache.AsyncCacheSet(l.cache, cacheKey(id), found, l.ttl, l.log)
	return found, nil
}
