package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
)

// ---------- Errores de dominio ----------
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidOnOwnAuction = errors.New("cannot bid on your own auction")
	ErrInvalidBid      = errors.New("invalid bid")
)

// PlaceFunc decide la puja con la subasta bloqueada y devuelve los eventos a encolar con ella.
type PlaceFunc func(ref AuctionRef, highest *int) (*Bid, []sharedDomain.OutboxEvent, error)

// FinalizeFunc decide el cierre y devuelve los eventos a encolar con él.
type FinalizeFunc func(ref AuctionRef, winning *Bid) (Outcome, []sharedDomain.OutboxEvent, error)

// ---------- Interfaces (Ports) ----------

type BidRepository interface {
	// SaveAuctionRefIfAbsent no hace nada si la referencia ya existe.
	SaveAuctionRefIfAbsent(ctx context.Context, ref AuctionRef) (bool, error)

	// Debe devolver ErrAuctionNotFound si no existe.
	GetAuctionRef(ctx context.Context, id uuid.UUID) (*AuctionRef, error)

	// PlaceBid bloquea la subasta, pasa a place la puja aceptada más alta y guarda
	// la puja y sus eventos en la misma transacción. ErrAuctionNotFound si no hay referencia.
	PlaceBid(ctx context.Context, auctionID uuid.UUID, place PlaceFunc) (*Bid, error)

	// BidsForAuction devuelve las pujas de una subasta, la más reciente primero.
	BidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)

	// FindExpiredUnfinalized devuelve subastas vencidas en now y aún sin cerrar.
	FindExpiredUnfinalized(ctx context.Context, now time.Time, limit int) ([]AuctionRef, error)

	// Finalize marca la subasta como cerrada solo si no lo estaba y, en la misma
	// transacción, guarda el resultado y sus eventos. false si otro cierre ganó.
	Finalize(ctx context.Context, auctionID uuid.UUID, finalize FinalizeFunc) (bool, error)
}

// AuctionLookup consulta de forma síncrona una subasta al catálogo.
// Debe devolver ErrAuctionNotFound si el catálogo no la conoce.
type AuctionLookup interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*AuctionRef, error)
}
