// Package erp talks to the external accounting system that owns stock levels
// and invoices. Calls are fire-and-forget from the caller's point of view:
// a sync failure is logged and surfaced, never rolled into the local
// transaction that triggered it.
package erp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/config"
)

type StockUpdate struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type InvoiceLine struct {
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Invoice struct {
	OrderNumber string        `json:"order_number"`
	Total       float64       `json:"total"`
	IssuedAt    time.Time     `json:"issued_at"`
	Lines       []InvoiceLine `json:"lines"`
}

type Client interface {
	PushStock(ctx context.Context, update StockUpdate) error
	PushInvoice(ctx context.Context, inv Invoice) error
}

type restClient struct {
	http *resty.Client
}

func NewClient(cfg config.ERPConfig) Client {
	if cfg.BaseURL == "" {
		log.Warn().Msg("ERP base URL not configured, stock/invoice sync disabled")
		return noopClient{}
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("X-Api-Key", cfg.APIKey)

	return &restClient{http: c}
}

func (c *restClient) PushStock(ctx context.Context, update StockUpdate) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(update).
		Post("/api/v1/stock")
	if err != nil {
		return fmt.Errorf("erp: stock push failed for sku %s: %w", update.SKU, err)
	}
	if resp.IsError() {
		return fmt.Errorf("erp: stock push for sku %s returned %s", update.SKU, resp.Status())
	}

	log.Info().Str("sku", update.SKU).Int("quantity", update.Quantity).Msg("erp: stock pushed")
	return nil
}

func (c *restClient) PushInvoice(ctx context.Context, inv Invoice) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(inv).
		Post("/api/v1/invoices")
	if err != nil {
		return fmt.Errorf("erp: invoice push failed for order %s: %w", inv.OrderNumber, err)
	}
	if resp.IsError() {
		return fmt.Errorf("erp: invoice push for order %s returned %s", inv.OrderNumber, resp.Status())
	}

	log.Info().Str("order_number", inv.OrderNumber).Msg("erp: invoice pushed")
	return nil
}

// noopClient stands in when no ERP endpoint is configured (local development).
type noopClient struct{}

func (noopClient) PushStock(ctx context.Context, update StockUpdate) error { return nil }
func (noopClient) PushInvoice(ctx context.Context, inv Invoice) error      { return nil }
