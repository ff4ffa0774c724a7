package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/search/domain"
)

// CatchUp trae del catálogo lo que la proyección se perdió mientras estaba caída.
type CatchUp struct {
	repo     domain.ItemRepository
	source   domain.AuctionSource
	interval time.Duration
	log      *zap.Logger
}

// NewCatchUp con interval cero solo sincroniza al arrancar.
func NewCatchUp(repo domain.ItemRepository, source domain.AuctionSource, interval time.Duration, log *zap.Logger) *CatchUp {
	return &CatchUp{repo: repo, source: source, interval: interval, log: log}
}

// RunOnce pide los cambios desde el UpdatedAt más reciente de la proyección y los guarda.
// La consulta reintenta hasta que ctx se cancela.
func (c *CatchUp) RunOnce(ctx context.Context) (int, error) {
	since, err := c.repo.LatestUpdatedAt(ctx)
	if err != nil {
		return 0, err
	}

	records, err := c.source.FetchChangesSince(ctx, since)
	if err != nil {
		return 0, err
	}

	items := make([]domain.Item, 0, len(records))
	for _, rec := range records {
		item := domain.ItemFromSnapshot(rec)
		if err := item.Validate(); err != nil {
			// Llegará corregido por la compensación del catálogo.
			c.log.Warn("Item rechazado en la sincronización", zap.String("auction_id", rec.ID.String()), zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	written, err := c.repo.UpsertMany(ctx, items)
	if err != nil {
		return written, err
	}
	c.log.Info("🔄 Sincronización con el catálogo completada",
		zap.Int("received", len(records)),
		zap.Int("written", written),
	)
	return written, nil
}

// Start sincroniza una vez y, si hay intervalo, repite hasta que se cancela ctx.
func (c *CatchUp) Start(ctx context.Context) {
	if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
		c.log.Error("Error en la sincronización inicial", zap.Error(err))
	}
	if c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("🛑 Catch-up detenido")
			return
		case <-ticker.C:
			if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
				c.log.Error("Error en la sincronización", zap.Error(err))
			}
		}
	}
}
