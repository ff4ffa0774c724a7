package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/bidding/domain"
	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/internal/shared/infra/platform/leader"
)

// Finalizer cierra periódicamente las subastas vencidas y publica AuctionFinished.
type Finalizer struct {
	repo      domain.BidRepository
	elector   leader.Elector
	interval  time.Duration
	batchSize int
	log       *zap.Logger
	now       func() time.Time
}

// NewFinalizer crea el cierre periódico. Con elector nil todas las instancias
// hacen el tick; el UPDATE condicional evita cierres dobles igualmente.
func NewFinalizer(repo domain.BidRepository, elector leader.Elector, interval time.Duration, batchSize int, log *zap.Logger) *Finalizer {
	if elector == nil {
		elector = leader.AlwaysLeader{}
	}
	return &Finalizer{
		repo:      repo,
		elector:   elector,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
		now:       time.Now,
	}
}

// Start bloquea hasta que se cancela ctx. La subasta en curso termina antes de salir.
func (f *Finalizer) Start(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.log.Info("⏱️ Comprobando subastas finalizadas", zap.Duration("interval", f.interval))

	for {
		select {
		case <-ctx.Done():
			if err := f.elector.Release(context.WithoutCancel(ctx)); err != nil {
				f.log.Warn("No se pudo liberar el liderazgo", zap.Error(err))
			}
			f.log.Info("🛑 Auction check is stopping")
			return
		case <-ticker.C:
			f.Tick(ctx)
		}
	}
}

// Tick ejecuta una pasada si esta instancia es líder y devuelve cuántas subastas cerró.
func (f *Finalizer) Tick(ctx context.Context) int {
	leading, err := f.elector.TryAcquire(ctx)
	if err != nil {
		f.log.Warn("Error en la elección de líder", zap.Error(err))
		return 0
	}
	if !leading {
		return 0
	}
	return f.RunOnce(ctx)
}

// RunOnce busca subastas vencidas y las cierra una a una, cada una en su transacción.
func (f *Finalizer) RunOnce(ctx context.Context) int {
	now := f.now().UTC()
	expired, err := f.repo.FindExpiredUnfinalized(ctx, now, f.batchSize)
	if err != nil {
		f.log.Warn("⚠️ Error buscando subastas vencidas", zap.Error(err))
		return 0
	}
	if len(expired) == 0 {
		return 0
	}
	f.log.Info("==> Found auctions that have completed", zap.Int("count", len(expired)))

	work := context.WithoutCancel(ctx)
	closed := 0
	for _, ref := range expired {
		if ctx.Err() != nil {
			break
		}
		won, err := f.repo.Finalize(work, ref.ID, f.outcome(now))
		if err != nil {
			f.log.Error("Error cerrando subasta", zap.String("auction_id", ref.ID.String()), zap.Error(err))
			continue
		}
		if won {
			closed++
		}
	}
	return closed
}

func (f *Finalizer) outcome(now time.Time) domain.FinalizeFunc {
	return func(ref domain.AuctionRef, winning *domain.Bid) (domain.Outcome, []sharedDomain.OutboxEvent, error) {
		outcome := domain.DecideOutcome(ref, winning)
		evt, err := sharedDomain.NewOutboxEvent(domain.AggregateType, ref.ID.String(),
			sharedEvents.AuctionFinishedType, outcome.FinishedEvent(ref), now)
		if err != nil {
			return domain.Outcome{}, nil, err
		}

		f.log.Info("🏁 Auction finished",
			zap.String("auction_id", ref.ID.String()),
			zap.String("status", outcome.Status),
			zap.String("winner", outcome.Winner),
		)
		return outcome, []sharedDomain.OutboxEvent{evt}, nil
	}
}

// FinalizeNow cierra una subasta concreta sin esperar al tick.
func (f *Finalizer) FinalizeNow(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	return f.repo.Finalize(ctx, auctionID, f.outcome(f.now().UTC()))
}
