package events

import (
	"time"

	"github.com/google/uuid"
)

// AuctionCreated lleva la subasta completa tal y como la creó el catálogo.
type AuctionCreated struct {
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
}

// AuctionUpdated es parcial: solo los campos no nulos cambiaron.
type AuctionUpdated struct {
	ID        uuid.UUID `json:"id"`
	Make      *string   `json:"make,omitempty"`
	Model     *string   `json:"model,omitempty"`
	Color     *string   `json:"color,omitempty"`
	Year      *int      `json:"year,omitempty"`
	Mileage   *int      `json:"mileage,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuctionFinished lo emite el servicio de pujas al cerrar una subasta.
type AuctionFinished struct {
	ItemSold  bool      `json:"itemSold"`
	AuctionID uuid.UUID `json:"auctionId"`
	Winner    string    `json:"winner,omitempty"`
	Seller    string    `json:"seller"`
	Amount    *int      `json:"amount,omitempty"`
	Status    string    `json:"status"`
}

// BidPlaced se emite por cada puja registrada, aceptada o no.
type BidPlaced struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auctionId"`
	Bidder    string    `json:"bidder"`
	BidTime   time.Time `json:"bidTime"`
	Amount    int       `json:"amount"`
	BidStatus string    `json:"bidStatus"`
}

// Fault envuelve un evento que un consumidor no pudo procesar.
type Fault struct {
	FaultID   uuid.UUID        `json:"faultId"`
	Message   IntegrationEvent `json:"message"`
	Consumer  string           `json:"consumer"`
	Reason    string           `json:"reason"`
	Field     string           `json:"field,omitempty"`
	Detail    string           `json:"detail"`
	Attempts  int              `json:"attempts"`
	FaultedAt time.Time        `json:"faultedAt"`
}

// Estados de puja aceptados, compartidos por todas las proyecciones.
const (
	BidStatusAccepted             = "Accepted"
	BidStatusAcceptedBelowReserve = "AcceptedBelowReserve"
	BidStatusTooLow               = "TooLow"
	BidStatusFinished             = "Finished"
)

// IsAcceptedBid indica si una puja cuenta para la puja más alta y para elegir ganador.
func IsAcceptedBid(status string) bool {
	return status == BidStatusAccepted || status == BidStatusAcceptedBelowReserve
}
