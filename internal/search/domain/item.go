package domain

import (
	"time"

	"github.com/google/uuid"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/internal/shared/domain/faults"
)

// Estados de la subasta tal y como los ve la búsqueda.
const (
	StatusLive          = "Live"
	StatusFinished      = "Finished"
	StatusReserveNotMet = "ReserveNotMet"
)

// PoisonModel es el modelo que la búsqueda rechaza; el catálogo lo corrige al recibir el Fault.
const PoisonModel = "foo"

// Item es la copia desnormalizada de una subasta para búsquedas.
type Item struct {
	ID             uuid.UUID `json:"id"`
	ReservePrice   int       `json:"reservePrice"`
	Seller         string    `json:"seller"`
	Winner         string    `json:"winner,omitempty"`
	SoldAmount     *int      `json:"soldAmount,omitempty"`
	CurrentHighBid *int      `json:"currentHighBid,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	AuctionEnd     time.Time `json:"auctionEnd"`
	Status         string    `json:"status"`
	Make           string    `json:"make"`
	Model          string    `json:"model"`
	Year           int       `json:"year"`
	Color          string    `json:"color"`
	Mileage        int       `json:"mileage"`
	ImageURL       string    `json:"imageUrl"`

	// Último evento aplicado. Vacío si el item llegó por la sincronización.
	LastEventID uuid.UUID `json:"-"`
	LastEventAt time.Time `json:"-"`
}

// EventStamp identifica el evento que modifica el item.
type EventStamp struct {
	ID uuid.UUID
	At time.Time
}

func StampOf(env sharedEvents.IntegrationEvent) EventStamp {
	return EventStamp{ID: env.ID, At: env.Timestamp}
}

// ItemFromSnapshot copia la subasta publicada por el catálogo.
func ItemFromSnapshot(s sharedEvents.AuctionCreated) Item {
	status := s.Status
	if status == "" {
		status = StatusLive
	}
	return Item{
		ID:             s.ID,
		ReservePrice:   s.ReservePrice,
		Seller:         s.Seller,
		Winner:         s.Winner,
		SoldAmount:     s.SoldAmount,
		CurrentHighBid: s.CurrentHighBid,
		CreatedAt:      s.CreatedAt.UTC(),
		UpdatedAt:      s.UpdatedAt.UTC(),
		AuctionEnd:     s.AuctionEnd.UTC(),
		Status:         status,
		Make:           s.Make,
		Model:          s.Model,
		Year:           s.Year,
		Color:          s.Color,
		Mileage:        s.Mileage,
		ImageURL:       s.ImageURL,
	}
}

// Validate rechaza los items que la búsqueda no acepta.
func (i Item) Validate() error {
	if i.Model == PoisonModel {
		return faults.Validation("model", ErrRejectedModel)
	}
	return nil
}

func (i *Item) Stamp(s EventStamp) {
	i.LastEventID = s.ID
	i.LastEventAt = s.At.UTC()
}

func (i Item) IsLive() bool {
	return i.Status == StatusLive
}

// ApplyUpdate sobrescribe solo los campos presentes en el evento.
func (i *Item) ApplyUpdate(u sharedEvents.AuctionUpdated) {
	if u.Make != nil {
		i.Make = *u.Make
	}
	if u.Model != nil {
		i.Model = *u.Model
	}
	if u.Color != nil {
		i.Color = *u.Color
	}
	if u.Year != nil {
		i.Year = *u.Year
	}
	if u.Mileage != nil {
		i.Mileage = *u.Mileage
	}
	if !u.UpdatedAt.IsZero() {
		i.UpdatedAt = u.UpdatedAt.UTC()
	}
}

// RaiseHighBid sube la puja más alta solo si la supera.
func (i *Item) RaiseHighBid(amount int) bool {
	if i.CurrentHighBid != nil && amount <= *i.CurrentHighBid {
		return false
	}
	i.CurrentHighBid = &amount
	return true
}

// FinishedStatus traduce el resultado del cierre al estado del item.
func FinishedStatus(evt sharedEvents.AuctionFinished) string {
	if evt.ItemSold {
		return StatusFinished
	}
	return StatusReserveNotMet
}

// Finish aplica el cierre una sola vez.
func (i *Item) Finish(evt sharedEvents.AuctionFinished) bool {
	if !i.IsLive() {
		return false
	}
	i.Status = FinishedStatus(evt)
	i.Winner = evt.Winner
	if evt.ItemSold {
		i.SoldAmount = evt.Amount
	}
	return true
}
