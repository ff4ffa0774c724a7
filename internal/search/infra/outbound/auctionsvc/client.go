// Package auctionsvc consulta al catálogo las subastas que la búsqueda no tiene.
package auctionsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/internal/search/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// DefaultRetryInterval es la espera entre intentos contra el catálogo.
const DefaultRetryInterval = 3 * time.Second

// Client implementa domain.AuctionSource sobre GET /items?since=.
type Client struct {
	baseURL       string
	http          *http.Client
	retryInterval time.Duration
	log           *zap.Logger
}

var _ domain.AuctionSource = (*Client)(nil)

func NewClient(baseURL string, requestTimeout, retryInterval time.Duration, log *zap.Logger) *Client {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: requestTimeout},
		retryInterval: retryInterval,
		log:           log,
	}
}

// errRetryable marca las respuestas que merece la pena repetir.
var errRetryable = errors.New("catalog unavailable")

// FetchChangesSince reintenta sin límite ante errores de red, 404 y 5xx hasta que se cancela ctx.
// Cualquier otro código es definitivo.
func (c *Client) FetchChangesSince(ctx context.Context, since *time.Time) ([]sharedEvents.AuctionCreated, error) {
	target := c.baseURL + "/items"
	if since != nil {
		target += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}

	attempt := 0
	operation := func() ([]sharedEvents.AuctionCreated, error) {
		attempt++
		records, err := c.fetch(ctx, target)
		if err != nil && !errors.Is(err, errRetryable) {
			return nil, backoff.Permanent(err)
		}
		return records, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryInterval)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Warn("Catálogo no disponible, reintentando",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)
}

func (c *Client) fetch(ctx context.Context, target string) ([]sharedEvents.AuctionCreated, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog query: unexpected status %d: %s", resp.StatusCode, body)
	}

	var records []sharedEvents.AuctionCreated
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("catalog query: decode: %w", err)
	}
	return records, nil
}
