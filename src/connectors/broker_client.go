// REST CLIENT FOR AN ALPACA-COMPATIBLE EQUITY BROKER
// RESTY + INTERNAL RETRY + CALL PACING
package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"portfolioexecutor/src/model"
)

// -----------------------------
// CONFIG
// -----------------------------
const (
	// Default retry configuration
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
	defaultTimeout         = 15 * time.Second
	defaultMinInterval     = 350 * time.Millisecond
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type positionPayload struct {
	Symbol      string          `json:"symbol"`
	AssetClass  string          `json:"asset_class"`
	Qty         decimal.Decimal `json:"qty"`
	MarketValue decimal.Decimal `json:"market_value"`
	Side        string          `json:"side"`
}

// -----------------------------
// AUTHENTICATED CLIENT
// -----------------------------
type BrokerClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *resty.Client
	limiter   *rate.Limiter
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == http.StatusTooManyRequests {
		return true
	}
	if code == http.StatusRequestTimeout {
		return true
	}
	return false
}

// NewBrokerClient builds a client from cfg. Zero values fall back to the
// package defaults.
func NewBrokerClient(cfg Config) *BrokerClient {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = defaultMinInterval
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://paper-api.alpaca.markets"
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(attempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			return limiter.Wait(r.Context())
		})

	return &BrokerClient{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   baseURL,
		http:      httpClient,
		limiter:   limiter,
	}
}

func (c *BrokerClient) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("APCA-API-KEY-ID", c.apiKey).
		SetHeader("APCA-API-SECRET-KEY", c.apiSecret).
		SetHeader("Accept", "application/json")

	if len(query) > 0 {
		req = req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req = req.SetBody(body).SetHeader("Content-Type", "application/json")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.IsError() {
		return parseAPIError(resp)
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func parseAPIError(resp *resty.Response) error {
	raw := resp.Body()

	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
	}

	be := NewBrokerError(resp.StatusCode(), apiErr.Code, apiErr.Message)
	if resp.Request != nil {
		be.Attempt = resp.Request.Attempt
	}
	return be
}

// -----------------------------
// ACCOUNT & POSITION METHODS
// -----------------------------

// Account returns the account snapshot. Equity from here is the only equity
// figure a run uses.
func (c *BrokerClient) Account(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.doRequest(ctx, http.MethodGet, "/v2/account", nil, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *BrokerClient) CurrentPositions(ctx context.Context) ([]model.CurrentPosition, error) {
	var payload []positionPayload
	if err := c.doRequest(ctx, http.MethodGet, "/v2/positions", nil, nil, &payload); err != nil {
		return nil, err
	}

	positions := make([]model.CurrentPosition, 0, len(payload))
	for _, p := range payload {
		positions = append(positions, model.CurrentPosition{
			Symbol:      model.NormalizeSymbol(p.Symbol),
			Qty:         p.Qty,
			MarketValue: p.MarketValue,
			Side:        strings.ToLower(p.Side),
		})
	}
	return positions, nil
}

// -----------------------------
// TRADING METHODS
// -----------------------------

// PlaceOrder submits a market day order. A retry that hits an already
// accepted client_order_id resolves to the existing order.
func (c *BrokerClient) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderAck, error) {
	if req.Notional.Valid == req.Qty.Valid {
		return nil, fmt.Errorf("order for %s must set exactly one of notional or qty", req.Symbol)
	}

	body := map[string]interface{}{
		"symbol":        model.NormalizeSymbol(req.Symbol),
		"side":          req.Side,
		"type":          "market",
		"time_in_force": "day",
	}
	if req.Notional.Valid {
		body["notional"] = req.Notional.Decimal.StringFixed(2)
	} else {
		body["qty"] = req.Qty.Decimal.String()
	}
	if req.ClientOrderID != "" {
		body["client_order_id"] = req.ClientOrderID
	}

	var ack OrderAck
	err := c.doRequest(ctx, http.MethodPost, "/v2/orders", nil, body, &ack)
	if err != nil {
		if req.ClientOrderID != "" && KindOf(err) == ErrorKindDuplicateClientOrderID {
			logger.WithFields(logger.Fields{
				"symbol":          req.Symbol,
				"client_order_id": req.ClientOrderID,
			}).Warn("client order id already accepted, resolving existing order")
			return c.GetOrderByClientID(ctx, req.ClientOrderID)
		}
		return nil, err
	}
	return &ack, nil
}

// ClosePosition liquidates the whole holding in symbol.
// A 404 on a retried attempt means an earlier attempt already closed the
// position; the close is reported as filled under a local id.
func (c *BrokerClient) ClosePosition(ctx context.Context, symbol string) (*OrderAck, error) {
	symbol = model.NormalizeSymbol(symbol)
	path := "/v2/positions/" + url.PathEscape(symbol)

	var ack OrderAck
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil, &ack); err != nil {
		var be *BrokerError
		if errors.As(err, &be) && be.StatusCode == http.StatusNotFound && be.Attempt > 1 {
			logger.WithFields(logger.Fields{
				"symbol":  symbol,
				"attempt": be.Attempt,
			}).Warn("position gone on close retry, treating earlier attempt as done")
			now := time.Now().UTC()
			return &OrderAck{
				ID:          "close-" + symbol + "-" + uuid.NewString(),
				Symbol:      symbol,
				Status:      model.OrderRecordStatusFilled,
				SubmittedAt: now,
				FilledAt:    &now,
			}, nil
		}
		return nil, err
	}
	return &ack, nil
}

// -----------------------------
// ORDER QUERY METHODS
// -----------------------------
func (c *BrokerClient) GetOrder(ctx context.Context, orderID string) (*OrderAck, error) {
	var ack OrderAck
	if err := c.doRequest(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(orderID), nil, nil, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *BrokerClient) GetOrderByClientID(ctx context.Context, clientOrderID string) (*OrderAck, error) {
	query := url.Values{}
	query.Set("client_order_id", clientOrderID)

	var ack OrderAck
	if err := c.doRequest(ctx, http.MethodGet, "/v2/orders:by_client_order_id", query, nil, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}
