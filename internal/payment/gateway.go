package payment

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/scooterparts/backend/internal/config"
)

// GatewayTransaction is what the third-party payment provider hands back on
// checkout: an opaque reference plus the URL to send the customer to.
type GatewayTransaction struct {
	Ref         string `json:"ref"`
	RedirectURL string `json:"redirect_url"`
}

type GatewayClient interface {
	CreateTransaction(ctx context.Context, orderNumber string, amount float64) (GatewayTransaction, error)
}

type restGateway struct {
	http *resty.Client
}

func NewGatewayClient(cfg config.GatewayConfig) GatewayClient {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey)
	return &restGateway{http: c}
}

func (g *restGateway) CreateTransaction(ctx context.Context, orderNumber string, amount float64) (GatewayTransaction, error) {
	var tx GatewayTransaction

	resp, err := g.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"order_number": orderNumber,
			"amount":       amount,
			"currency":     "EUR",
		}).
		SetResult(&tx).
		Post("/v2/transactions")
	if err != nil {
		return GatewayTransaction{}, fmt.Errorf("gateway: transaction create failed for order %s: %w", orderNumber, err)
	}
	if resp.IsError() {
		return GatewayTransaction{}, fmt.Errorf("gateway: transaction create for order %s returned %s", orderNumber, resp.Status())
	}
	if tx.Ref == "" {
		return GatewayTransaction{}, fmt.Errorf("gateway: empty transaction ref for order %s", orderNumber)
	}

	return tx, nil
}
