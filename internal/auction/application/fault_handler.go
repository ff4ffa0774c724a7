package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/auction/domain"
	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/internal/shared/domain/faults"
)

// ReplacementModel sustituye a un modelo rechazado por las proyecciones.
const ReplacementModel = "FooBar"

// CorrectionRule corrige un campo concreto de la subasta cuando un consumidor
// lo rechazó con una razón concreta. Correct devuelve false si no hay nada que cambiar.
type CorrectionRule struct {
	Reason  faults.Reason
	Field   string
	Correct func(a *domain.Auction) bool
}

type ruleKey struct {
	reason faults.Reason
	field  string
}

// DefaultCorrectionRules son las correcciones que el catálogo sabe aplicar.
func DefaultCorrectionRules() []CorrectionRule {
	return []CorrectionRule{
		{
			Reason: faults.ReasonValidation,
			Field:  "model",
			Correct: func(a *domain.Auction) bool {
				if a.Item.Model == ReplacementModel {
					return false
				}
				a.Item.Model = ReplacementModel
				return true
			},
		},
	}
}

// FaultHandler compensa los AuctionCreated que un consumidor no pudo procesar.
type FaultHandler struct {
	repo  domain.AuctionRepository
	rules map[ruleKey]CorrectionRule
	log   *zap.Logger
	now   func() time.Time
}

func NewFaultHandler(repo domain.AuctionRepository, log *zap.Logger, rules ...CorrectionRule) *FaultHandler {
	if len(rules) == 0 {
		rules = DefaultCorrectionRules()
	}
	table := make(map[ruleKey]CorrectionRule, len(rules))
	for _, r := range rules {
		table[ruleKey{r.Reason, r.Field}] = r
	}
	return &FaultHandler{repo: repo, rules: table, log: log, now: time.Now}
}

// HandleAuctionCreatedFault corrige el catálogo y encola el AuctionCreated
// corregido en una sola transacción. Sin regla aplicable solo se registra.
func (h *FaultHandler) HandleAuctionCreatedFault(ctx context.Context, fault sharedEvents.Fault) error {
	log := h.log.With(
		zap.String("fault_id", fault.FaultID.String()),
		zap.String("consumer", fault.Consumer),
		zap.String("reason", fault.Reason),
		zap.String("field", fault.Field),
	)

	rule, ok := h.rules[ruleKey{faults.Reason(fault.Reason), fault.Field}]
	if !ok {
		log.Warn("Unknown fault, no correction applied", zap.String("detail", fault.Detail))
		return nil
	}

	original, err := sharedEvents.DecodeData[sharedEvents.AuctionCreated](fault.Message)
	if err != nil {
		return faults.Malformed(err)
	}

	auction, err := h.repo.GetByID(ctx, original.ID)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		log.Warn("Faulted auction no longer exists", zap.String("auction_id", original.ID.String()))
		return nil
	}
	if err != nil {
		return err
	}

	if !rule.Correct(auction) {
		log.Info("Fault already compensated", zap.String("auction_id", auction.ID.String()))
		return nil
	}

	now := h.now()
	auction.UpdatedAt = now.UTC()
	evt, err := sharedDomain.NewOutboxEvent(domain.AggregateType, auction.ID.String(),
		sharedEvents.AuctionCreatedType, auction.Snapshot(), now)
	if err != nil {
		return err
	}
	if err := h.repo.Update(ctx, auction, evt); err != nil {
		return err
	}

	log.Info("🩹 Auction corrected and republished", zap.String("auction_id", auction.ID.String()))
	return nil
}
