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
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionAlreadyExists = errors.New("auction already exists")
	ErrInvalidAuction       = errors.New("invalid auction")
	ErrNotSeller            = errors.New("only the seller can modify the auction")
	ErrAuctionNotLive       = errors.New("auction is no longer live")
)

// ---------- Interfaces (Ports) ----------

// AuctionRepository persiste el catálogo. Los métodos que reciben eventos los
// encolan en outbox dentro de la misma transacción que el cambio.
type AuctionRepository interface {
	// Debe devolver ErrAuctionAlreadyExists si el id ya existe.
	Create(ctx context.Context, a *Auction, evt sharedDomain.OutboxEvent) error

	// Debe devolver ErrAuctionNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)

	// Update guarda los datos del vehículo y updated_at. ErrAuctionNotFound si no existe.
	Update(ctx context.Context, a *Auction, evts ...sharedDomain.OutboxEvent) error

	// ListUpdatedSince devuelve las subastas con updated_at posterior a since
	// (todas si es nil), ordenadas por marca y modelo.
	ListUpdatedSince(ctx context.Context, since *time.Time) ([]*Auction, error)

	// RaiseCurrentHighBid sube la puja más alta solo si la subasta está viva y el
	// importe supera al actual. Devuelve false si no cambió nada.
	RaiseCurrentHighBid(ctx context.Context, id uuid.UUID, amount int, at time.Time) (bool, error)

	// FinishIfLive guarda el cierre solo si la subasta seguía Live.
	FinishIfLive(ctx context.Context, a *Auction) (bool, error)
}
