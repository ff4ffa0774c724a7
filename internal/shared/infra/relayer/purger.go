package relayer

import (
	"context"
	"time"

	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Archiver guarda una copia de los eventos antes de borrarlos de outbox.
type Archiver interface {
	Archive(ctx context.Context, records []sharedDomain.OutboxEvent) error
}

// Purger borra de outbox lo ya despachado tras la retención y lo que superó la edad máxima sin despacharse.
type Purger struct {
	repo      sharedDomain.OutboxJanitor
	archiver  Archiver // opcional
	retention time.Duration
	maxAge    time.Duration
	batchSize int
	log       *zap.Logger
	now       func() time.Time
}

func NewPurger(repo sharedDomain.OutboxJanitor, archiver Archiver, retention, maxAge time.Duration, batchSize int, log *zap.Logger) *Purger {
	return &Purger{
		repo:      repo,
		archiver:  archiver,
		retention: retention,
		maxAge:    maxAge,
		batchSize: batchSize,
		log:       log,
		now:       time.Now,
	}
}

// Run purga lotes hasta vaciar lo purgable y devuelve cuántos registros borró.
func (p *Purger) Run(ctx context.Context) (int, error) {
	now := p.now().UTC()
	total := 0
	for {
		records, err := p.repo.FetchPurgeable(ctx, now.Add(-p.retention), now.Add(-p.maxAge), p.batchSize)
		if err != nil {
			return total, err
		}
		if len(records) == 0 {
			return total, nil
		}

		ids := make([]uuid.UUID, 0, len(records))
		for _, r := range records {
			if !r.Dispatched() {
				p.log.Error("⏰ Evento de outbox expirado sin despachar",
					zap.String("event_id", r.ID.String()),
					zap.String("event_type", r.EventType),
					zap.String("aggregate_id", r.AggregateID),
					zap.Int("attempts", r.Attempts),
					zap.String("last_error", r.LastError),
				)
			}
			ids = append(ids, r.ID)
		}

		if p.archiver != nil {
			if err := p.archiver.Archive(ctx, records); err != nil {
				// Sin archivo no se borra nada; se reintenta en la próxima ejecución.
				return total, err
			}
		}
		if err := p.repo.DeleteOutbox(ctx, ids); err != nil {
			return total, err
		}
		total += len(ids)

		if len(records) < p.batchSize {
			return total, nil
		}
	}
}

// Schedule registra el purgado en un cron con la expresión indicada (ej. "@every 1h").
// El cron devuelto debe detenerse con Stop() al apagar.
func (p *Purger) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := p.Run(ctx)
		if err != nil {
			p.log.Warn("⚠️ Purgado de outbox fallido", zap.Int("purged", n), zap.Error(err))
			return
		}
		if n > 0 {
			p.log.Info("🧹 Outbox purgado", zap.Int("purged", n))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	p.log.Info("🚀 Purgado de outbox programado", zap.String("schedule", spec))
	return c, nil
}
