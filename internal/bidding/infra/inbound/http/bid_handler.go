package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/bidding/application"
	"github.com/davicafu/pujalab/internal/bidding/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/pkg/utils"
)

type BidHandler struct {
	service *application.BidService
	log     *zap.Logger
}

func NewBidHandler(service *application.BidService, log *zap.Logger) *BidHandler {
	return &BidHandler{service: service, log: log}
}

// PlaceBid endpoint POST /api/bids?auctionId=&amount=
func (h *BidHandler) PlaceBid(c *gin.Context) {
	bidder, ok := utils.CurrentUser(c)
	if !ok {
		return
	}

	auctionID, err := uuid.Parse(c.Query("auctionId"))
	if err != nil {
		utils.SendBadRequest(c, "invalid auctionId")
		return
	}
	amount, err := strconv.Atoi(c.Query("amount"))
	if err != nil {
		utils.SendBadRequest(c, "invalid amount")
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), auctionID, bidder, amount)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, bid.Event())
}

// BidsForAuction endpoint GET /api/bids/:auctionId
func (h *BidHandler) BidsForAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		utils.SendBadRequest(c, "invalid auctionId")
		return
	}

	bids, err := h.service.BidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		h.sendError(c, err)
		return
	}

	out := make([]sharedEvents.BidPlaced, 0, len(bids))
	for _, b := range bids {
		out = append(out, b.Event())
	}
	utils.SendSuccess(c, http.StatusOK, out)
}

func (h *BidHandler) sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		utils.SendNotFound(c, "auction not found")
	case errors.Is(err, domain.ErrBidOnOwnAuction), errors.Is(err, domain.ErrInvalidBid):
		utils.SendBadRequest(c, err.Error())
	default:
		h.log.Error("Bid request failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "could not place bid")
	}
}
