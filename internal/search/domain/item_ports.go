package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// ---------- Errores de dominio ----------
var (
	ErrItemNotFound  = errors.New("item not found")
	ErrRejectedModel = errors.New("cannot sell cars with model foo")
)

// ---------- Interfaces (Ports) ----------

type ItemRepository interface {
	// InsertIfAbsent no hace nada si ya existe un item con ese id.
	InsertIfAbsent(ctx context.Context, item Item) (bool, error)

	// Debe devolver ErrItemNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// ApplyUpdate escribe solo los campos presentes. ErrItemNotFound si no existe.
	ApplyUpdate(ctx context.Context, upd sharedEvents.AuctionUpdated, stamp EventStamp) error

	// RaiseCurrentHighBid solo sube la puja más alta. false si no la supera.
	// ErrItemNotFound si no existe.
	RaiseCurrentHighBid(ctx context.Context, id uuid.UUID, amount int, stamp EventStamp) (bool, error)

	// MarkFinished cierra el item si seguía Live. ErrItemNotFound si no existe.
	MarkFinished(ctx context.Context, evt sharedEvents.AuctionFinished, stamp EventStamp) (bool, error)

	// LatestUpdatedAt devuelve el UpdatedAt más reciente, nil si no hay items.
	LatestUpdatedAt(ctx context.Context) (*time.Time, error)

	// UpsertMany guarda los items salvo los que ya tengan un UpdatedAt más nuevo.
	// Devuelve cuántos se escribieron.
	UpsertMany(ctx context.Context, items []Item) (int, error)

	Search(ctx context.Context, params SearchParams, now time.Time) (SearchResult, error)
}

// AuctionSource es el dueño de las subastas consultado para ponerse al día.
type AuctionSource interface {
	FetchChangesSince(ctx context.Context, since *time.Time) ([]sharedEvents.AuctionCreated, error)
}
