package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/pujalab/internal/shared/infra/platform/bus"
)

type Status string

const (
	StatusLive          Status = "Live"
	StatusFinished      Status = "Finished"
	StatusReserveNotMet Status = "ReserveNotMet"
)

// AggregateType identifica las subastas en la tabla outbox.
const AggregateType = "auction"

// Item es el vehículo que se subasta.
type Item struct {
	Make     string
	Model    string
	Color    string
	Year     int
	Mileage  int
	ImageURL string
}

type Auction struct {
	ID             uuid.UUID
	ReservePrice   int
	Seller         string
	Winner         string
	SoldAmount     *int
	CurrentHighBid *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	AuctionEnd     time.Time
	Status         Status
	Item           Item
}

func (a *Auction) PartitionKey() string {
	return a.ID.String()
}

// NewAuction valida los datos de alta y deja la subasta en Live.
func NewAuction(seller string, item Item, reservePrice int, auctionEnd, now time.Time) (*Auction, error) {
	switch {
	case strings.TrimSpace(seller) == "":
		return nil, fmt.Errorf("%w: seller is required", ErrInvalidAuction)
	case strings.TrimSpace(item.Make) == "" || strings.TrimSpace(item.Model) == "":
		return nil, fmt.Errorf("%w: make and model are required", ErrInvalidAuction)
	case item.Year <= 0 || item.Mileage < 0:
		return nil, fmt.Errorf("%w: invalid year or mileage", ErrInvalidAuction)
	case reservePrice < 0:
		return nil, fmt.Errorf("%w: reserve price must not be negative", ErrInvalidAuction)
	case !auctionEnd.After(now):
		return nil, fmt.Errorf("%w: auction end must be in the future", ErrInvalidAuction)
	}

	now = now.UTC()
	return &Auction{
		ID:           uuid.New(),
		ReservePrice: reservePrice,
		Seller:       seller,
		CreatedAt:    now,
		UpdatedAt:    now,
		AuctionEnd:   auctionEnd.UTC(),
		Status:       StatusLive,
		Item:         item,
	}, nil
}

// --- Métodos de dominio ---

func (a *Auction) IsLive() bool {
	return a.Status == StatusLive
}

// ItemPatch trae solo los campos que el vendedor quiere cambiar.
type ItemPatch struct {
	Make    *string
	Model   *string
	Color   *string
	Year    *int
	Mileage *int
}

// ApplyPatch aplica los campos presentes que realmente cambian y devuelve el
// AuctionUpdated con exactamente esos campos. changed=false si no hay nada que hacer.
func (a *Auction) ApplyPatch(p ItemPatch, now time.Time) (evt sharedEvents.AuctionUpdated, changed bool) {
	evt.ID = a.ID

	if p.Make != nil && *p.Make != a.Item.Make {
		a.Item.Make = *p.Make
		evt.Make = p.Make
		changed = true
	}
	if p.Model != nil && *p.Model != a.Item.Model {
		a.Item.Model = *p.Model
		evt.Model = p.Model
		changed = true
	}
	if p.Color != nil && *p.Color != a.Item.Color {
		a.Item.Color = *p.Color
		evt.Color = p.Color
		changed = true
	}
	if p.Year != nil && *p.Year != a.Item.Year {
		a.Item.Year = *p.Year
		evt.Year = p.Year
		changed = true
	}
	if p.Mileage != nil && *p.Mileage != a.Item.Mileage {
		a.Item.Mileage = *p.Mileage
		evt.Mileage = p.Mileage
		changed = true
	}

	if changed {
		a.UpdatedAt = now.UTC()
		evt.UpdatedAt = a.UpdatedAt
	}
	return evt, changed
}

// RaiseHighBid sube la puja más alta solo si la subasta sigue viva y el importe es mayor.
func (a *Auction) RaiseHighBid(amount int, now time.Time) bool {
	if !a.IsLive() {
		return false
	}
	if a.CurrentHighBid != nil && amount <= *a.CurrentHighBid {
		return false
	}
	a.CurrentHighBid = &amount
	a.UpdatedAt = now.UTC()
	return true
}

// FinalStatus decide el estado terminal: Finished solo si el importe supera la reserva.
func FinalStatus(soldAmount *int, reservePrice int) Status {
	if soldAmount != nil && *soldAmount > reservePrice {
		return StatusFinished
	}
	return StatusReserveNotMet
}

// Finish cierra la subasta. Un segundo cierre no cambia nada.
func (a *Auction) Finish(winner string, amount *int, now time.Time) bool {
	if !a.IsLive() {
		return false
	}
	a.Status = FinalStatus(amount, a.ReservePrice)
	if a.Status == StatusFinished {
		a.Winner = winner
		a.SoldAmount = amount
	}
	a.UpdatedAt = now.UTC()
	return true
}

// Snapshot es la forma pública de la subasta: payload de AuctionCreated y respuesta HTTP.
func (a *Auction) Snapshot() sharedEvents.AuctionCreated {
	return sharedEvents.AuctionCreated{
		ID:             a.ID,
		ReservePrice:   a.ReservePrice,
		Seller:         a.Seller,
		Winner:         a.Winner,
		SoldAmount:     a.SoldAmount,
		CurrentHighBid: a.CurrentHighBid,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		AuctionEnd:     a.AuctionEnd,
		Status:         string(a.Status),
		Make:           a.Item.Make,
		Model:          a.Item.Model,
		Year:           a.Item.Year,
		Color:          a.Item.Color,
		Mileage:        a.Item.Mileage,
		ImageURL:       a.Item.ImageURL,
	}
}

// Verificación estática para asegurar que Auction implementa la interfaz
var _ sharedBus.Keyer = (*Auction)(nil)
