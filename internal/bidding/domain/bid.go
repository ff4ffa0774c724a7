package domain

import (
	"time"

	"github.com/google/uuid"

	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// AggregateType identifica las pujas y cierres en la tabla outbox.
const AggregateType = "auction"

// Estados finales de una subasta decididos por el cierre.
const (
	OutcomeFinished      = "Finished"
	OutcomeReserveNotMet = "ReserveNotMet"
)

type Bid struct {
	ID        uuid.UUID
	AuctionID uuid.UUID
	Bidder    string
	Amount    int
	BidTime   time.Time
	Status    string
}

// PartitionKey agrupa las pujas por subasta: así conservan su orden con el resto de eventos.
func (b *Bid) PartitionKey() string {
	return b.AuctionID.String()
}

func (b *Bid) Accepted() bool {
	return sharedEvents.IsAcceptedBid(b.Status)
}

// Event es la forma pública de la puja.
func (b *Bid) Event() sharedEvents.BidPlaced {
	return sharedEvents.BidPlaced{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		Bidder:    b.Bidder,
		BidTime:   b.BidTime,
		Amount:    b.Amount,
		BidStatus: b.Status,
	}
}

// AuctionRef es la copia local de la subasta que necesita el servicio de pujas.
type AuctionRef struct {
	ID           uuid.UUID
	Seller       string
	AuctionEnd   time.Time
	ReservePrice int
	Finished     bool
	FinalStatus  string
	Winner       string
	SoldAmount   *int
}

// Ended indica si ya no se aceptan pujas.
func (a AuctionRef) Ended(now time.Time) bool {
	return a.Finished || !now.Before(a.AuctionEnd)
}

// AuctionRefFromCreated construye la referencia desde el evento del catálogo.
func AuctionRefFromCreated(evt sharedEvents.AuctionCreated) AuctionRef {
	return AuctionRef{
		ID:           evt.ID,
		Seller:       evt.Seller,
		AuctionEnd:   evt.AuctionEnd.UTC(),
		ReservePrice: evt.ReservePrice,
	}
}

// DecideBidStatus clasifica una puja nueva frente a la subasta y la puja aceptada más alta.
func DecideBidStatus(ref AuctionRef, highest *int, amount int, now time.Time) string {
	switch {
	case ref.Ended(now):
		return sharedEvents.BidStatusFinished
	case highest != nil && amount <= *highest:
		return sharedEvents.BidStatusTooLow
	case amount > ref.ReservePrice:
		return sharedEvents.BidStatusAccepted
	default:
		return sharedEvents.BidStatusAcceptedBelowReserve
	}
}

// Outcome es el resultado del cierre de una subasta.
type Outcome struct {
	Status string
	Winner string
	Amount *int
}

func (o Outcome) ItemSold() bool {
	return o.Status == OutcomeFinished
}

// DecideOutcome elige ganador con la puja aceptada más alta. Solo se vende si supera la reserva.
func DecideOutcome(ref AuctionRef, winning *Bid) Outcome {
	if winning == nil {
		return Outcome{Status: OutcomeReserveNotMet}
	}
	amount := winning.Amount
	out := Outcome{Status: OutcomeReserveNotMet, Winner: winning.Bidder, Amount: &amount}
	if amount > ref.ReservePrice {
		out.Status = OutcomeFinished
	}
	return out
}

// FinishedEvent construye el AuctionFinished del cierre.
func (o Outcome) FinishedEvent(ref AuctionRef) sharedEvents.AuctionFinished {
	return sharedEvents.AuctionFinished{
		ItemSold:  o.ItemSold(),
		AuctionID: ref.ID,
		Winner:    o.Winner,
		Seller:    ref.Seller,
		Amount:    o.Amount,
		Status:    o.Status,
	}
}
