// Package broker implements a ports.BrokerPort adapter over a generic
// REST brokerage API: HMAC-signed requests and a dry-run mode that logs
// instead of submitting. Each request is sent once; Config.Retry is carried
// but no call is retried, so transient failures are returned to the caller.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
)

// Config holds the adapter's connection and auth settings.
type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string
	Account    string
	DryRun     bool
	Timeout    time.Duration
	Retry      ports.RetryPolicy
}

// Client is a ports.BrokerPort implementation for a REST brokerage API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type submitOrderBody struct {
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	TimeInForce   string          `json:"time_in_force"`
	Quantity      decimal.Decimal `json:"qty"`
	LimitPrice    *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
}

type orderResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	FilledQty decimal.Decimal `json:"filled_qty"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (c *Client) SubmitOrder(ctx context.Context, req ports.SubmitOrderRequest) (ports.OrderAck, error) {
	body := submitOrderBody{
		ClientOrderID: req.ClientOrderID.String(),
		Symbol:        req.Symbol.String(),
		Side:          string(req.Side),
		Type:          string(req.OrderType),
		TimeInForce:   string(req.TimeInForce),
		Quantity:      req.Quantity.Decimal(),
	}
	if req.LimitPrice != nil {
		d := req.LimitPrice.Decimal()
		body.LimitPrice = &d
	}
	if req.StopPrice != nil {
		d := req.StopPrice.Decimal()
		body.StopPrice = &d
	}

	if c.cfg.DryRun {
		log.Info().Str("client_order_id", body.ClientOrderID).Str("symbol", body.Symbol).
			Str("side", body.Side).Msg("📝 DRY RUN: order would be submitted")
		return ports.OrderAck{
			BrokerID:  domain.BrokerIdFromString("dry-" + body.ClientOrderID),
			Status:    domain.StatusAccepted,
			FilledQty: domain.ZeroQuantity,
			Timestamp: time.Now(),
		}, nil
	}

	resp, err := c.post(ctx, "/orders", body)
	if err != nil {
		return ports.OrderAck{}, err
	}
	var parsed orderResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return ports.OrderAck{}, fmt.Errorf("decode submit response: %w", err)
	}
	return toAck(parsed), nil
}

func (c *Client) CancelOrder(ctx context.Context, req ports.CancelOrderRequest) error {
	id := req.ClientOrderID.String()
	if req.BrokerID != nil {
		id = req.BrokerID.String()
	}
	if c.cfg.DryRun {
		log.Info().Str("order_id", id).Msg("📝 DRY RUN: order would be cancelled")
		return nil
	}
	_, err := c.deleteWithBody(ctx, "/orders/"+id, nil)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", id, err)
	}
	log.Info().Str("order_id", id).Msg("🗑️ order cancelled")
	return nil
}

func (c *Client) GetOrder(ctx context.Context, brokerID domain.BrokerId) (ports.OrderAck, error) {
	resp, err := c.get(ctx, "/orders/"+brokerID.String())
	if err != nil {
		return ports.OrderAck{}, err
	}
	var parsed orderResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return ports.OrderAck{}, fmt.Errorf("decode order response: %w", err)
	}
	return toAck(parsed), nil
}

func (c *Client) GetOpenOrders(ctx context.Context) ([]ports.OrderAck, error) {
	resp, err := c.get(ctx, "/orders?status=open")
	if err != nil {
		return nil, err
	}
	var parsed []orderResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("decode open orders response: %w", err)
	}
	acks := make([]ports.OrderAck, len(parsed))
	for i, p := range parsed {
		acks[i] = toAck(p)
	}
	return acks, nil
}

func (c *Client) GetBuyingPower(ctx context.Context) (domain.Money, error) {
	resp, err := c.get(ctx, "/account")
	if err != nil {
		return domain.ZeroMoney, err
	}
	var parsed struct {
		BuyingPower decimal.Decimal `json:"buying_power"`
	}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return domain.ZeroMoney, fmt.Errorf("decode account response: %w", err)
	}
	return domain.NewMoney(parsed.BuyingPower), nil
}

func (c *Client) GetPosition(ctx context.Context, instrumentID domain.InstrumentId) (domain.Quantity, bool, error) {
	resp, err := c.get(ctx, "/positions/"+instrumentID.String())
	if err != nil {
		if isNotFound(err) {
			return domain.ZeroQuantity, false, nil
		}
		return domain.ZeroQuantity, false, err
	}
	var parsed struct {
		Quantity decimal.Decimal `json:"qty"`
	}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return domain.ZeroQuantity, false, fmt.Errorf("decode position response: %w", err)
	}
	return domain.NewQuantity(parsed.Quantity), true, nil
}

func toAck(p orderResponse) ports.OrderAck {
	return ports.OrderAck{
		BrokerID:  domain.BrokerIdFromString(p.ID),
		Status:    mapStatus(p.Status),
		FilledQty: domain.NewQuantity(p.FilledQty),
		AvgPrice:  domain.NewMoney(p.AvgPrice),
		Timestamp: p.UpdatedAt,
	}
}

func mapStatus(s string) domain.OrderStatus {
	switch s {
	case "new", "pending_new":
		return domain.StatusPendingNew
	case "accepted", "open":
		return domain.StatusAccepted
	case "partially_filled":
		return domain.StatusPartiallyFilled
	case "filled":
		return domain.StatusFilled
	case "pending_cancel":
		return domain.StatusPendingCancel
	case "canceled", "cancelled":
		return domain.StatusCanceled
	case "rejected":
		return domain.StatusRejected
	case "expired":
		return domain.StatusExpired
	default:
		return domain.StatusNew
	}
}

func isNotFound(err error) bool {
	return err != nil && errIs(err, domain.ErrOrderNotFound)
}
