package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/auction/application"
	"github.com/davicafu/pujalab/internal/auction/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	"github.com/davicafu/pujalab/pkg/utils"
)

// AuctionHandler encapsula los endpoints HTTP del catálogo.
type AuctionHandler struct {
	service *application.AuctionService
	log     *zap.Logger
}

func NewAuctionHandler(service *application.AuctionService, log *zap.Logger) *AuctionHandler {
	return &AuctionHandler{service: service, log: log}
}

// ---------------- Handlers ----------------

// CreateAuction endpoint POST /api/auctions
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	seller, ok := utils.CurrentUser(c)
	if !ok {
		return
	}

	var req struct {
		Make         string    `json:"make" binding:"required"`
		Model        string    `json:"model" binding:"required"`
		Color        string    `json:"color" binding:"required"`
		Year         int       `json:"year" binding:"required"`
		Mileage      int       `json:"mileage"`
		ImageURL     string    `json:"imageUrl"`
		ReservePrice int       `json:"reservePrice"`
		AuctionEnd   time.Time `json:"auctionEnd" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), seller, application.CreateAuctionInput{
		Item: domain.Item{
			Make:     req.Make,
			Model:    req.Model,
			Color:    req.Color,
			Year:     req.Year,
			Mileage:  req.Mileage,
			ImageURL: req.ImageURL,
		},
		ReservePrice: req.ReservePrice,
		AuctionEnd:   req.AuctionEnd,
	})
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.Header("Location", "/api/auctions/"+auction.ID.String())
	utils.SendSuccess(c, http.StatusCreated, auction.Snapshot())
}

// UpdateAuction endpoint PUT /api/auctions/:id (parcial)
func (h *AuctionHandler) UpdateAuction(c *gin.Context) {
	user, ok := utils.CurrentUser(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid auction id")
		return
	}

	var req struct {
		Make    *string `json:"make,omitempty"`
		Model   *string `json:"model,omitempty"`
		Color   *string `json:"color,omitempty"`
		Year    *int    `json:"year,omitempty"`
		Mileage *int    `json:"mileage,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	auction, err := h.service.UpdateAuction(c.Request.Context(), id, user, domain.ItemPatch{
		Make:    req.Make,
		Model:   req.Model,
		Color:   req.Color,
		Year:    req.Year,
		Mileage: req.Mileage,
	})
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, auction.Snapshot())
}

// GetAuction endpoint GET /api/auctions/:id. También es la consulta síncrona del servicio de pujas.
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid auction id")
		return
	}

	auction, err := h.service.GetAuction(c.Request.Context(), id)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, auction.Snapshot())
}

// ListUpdated endpoint GET /items?since= y GET /api/auctions?date=
func (h *AuctionHandler) ListUpdated(c *gin.Context) {
	raw := c.Query("since")
	if raw == "" {
		raw = c.Query("date")
	}

	var since *time.Time
	if raw != "" {
		t, err := parseInstant(raw)
		if err != nil {
			utils.SendBadRequest(c, "invalid date, use ISO8601")
			return
		}
		since = &t
	}

	auctions, err := h.service.ListUpdatedSince(c.Request.Context(), since)
	if err != nil {
		h.sendError(c, err)
		return
	}

	out := make([]sharedEvents.AuctionCreated, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, a.Snapshot())
	}
	utils.SendSuccess(c, http.StatusOK, out)
}

func parseInstant(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unsupported time format")
}

func (h *AuctionHandler) sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		utils.SendNotFound(c, "auction not found")
	case errors.Is(err, domain.ErrInvalidAuction):
		utils.SendBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotSeller):
		utils.SendForbidden(c, err.Error())
	case errors.Is(err, domain.ErrAuctionNotLive):
		utils.SendError(c, http.StatusConflict, err.Error())
	default:
		h.log.Error("Auction request failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "could not save changes")
	}
}
