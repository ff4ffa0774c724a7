package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/bidding/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// Client consulta una subasta al catálogo por HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

var _ domain.AuctionLookup = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// GetAuction devuelve ErrAuctionNotFound si el catálogo responde 404.
func (c *Client) GetAuction(ctx context.Context, id uuid.UUID) (*domain.AuctionRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auctions/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auction lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, id)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("auction lookup: unexpected status %d: %s", resp.StatusCode, body)
	}

	var snapshot sharedEvents.AuctionCreated
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("auction lookup: decode: %w", err)
	}
	ref := domain.AuctionRefFromCreated(snapshot)

	c.log.Debug("Auction fetched", zap.String("auction_id", id.String()))
	return &ref, nil
}
