package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBrokerClient(baseURL string) *BrokerClient {
	return NewBrokerClient(Config{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		APISecret:     "test-secret",
		MinInterval:   time.Millisecond,
		Timeout:       2 * time.Second,
		RetryAttempts: 3,
	})
}

func fakeResponse(status int) *resty.Response {
	return &resty.Response{RawResponse: &http.Response{StatusCode: status}}
}

func TestIsRetryableResp(t *testing.T) {
	cases := []struct {
		name string
		resp *resty.Response
		err  error
		want bool
	}{
		{name: "transport error", err: errors.New("connection reset by peer"), want: true},
		{name: "canceled context", err: context.Canceled, want: false},
		{name: "server error", resp: fakeResponse(503), want: true},
		{name: "too many requests", resp: fakeResponse(429), want: true},
		{name: "request timeout", resp: fakeResponse(408), want: true},
		{name: "domain rejection", resp: fakeResponse(403), want: false},
		{name: "unprocessable", resp: fakeResponse(422), want: false},
		{name: "ok response", resp: fakeResponse(200), want: false},
		{name: "nil resp", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isRetryableResp(tc.resp, tc.err))
		})
	}
}

func TestBrokerClientAccountAndPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "test-secret", r.Header.Get("APCA-API-SECRET-KEY"))

		switch r.URL.Path {
		case "/v2/account":
			_, _ = w.Write([]byte(`{"id":"acc-1","status":"ACTIVE","equity":"55593.81","cash":"1000.50","buying_power":"2001"}`))
		case "/v2/positions":
			_, _ = w.Write([]byte(`[
				{"symbol":"aapl","qty":"8","market_value":"1500.00","side":"long","asset_class":"us_equity"},
				{"symbol":"TSLA","qty":"-2","market_value":"-400.10","side":"short","asset_class":"us_equity"}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestBrokerClient(server.URL)
	ctx := context.Background()

	account, err := client.Account(ctx)
	require.NoError(t, err)
	assert.True(t, account.Equity.Equal(decimal.RequireFromString("55593.81")))

	positions, err := client.CurrentPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.True(t, positions[0].MarketValue.Equal(decimal.NewFromInt(1500)))
	assert.True(t, positions[1].SignedMarketValue().Equal(decimal.RequireFromString("-400.10")))
}

func TestBrokerClientPlaceOrderBody(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":"o-1","client_order_id":"c-1","symbol":"GOOGL","side":"buy","status":"accepted","notional":"2000","submitted_at":"2026-01-12T14:30:00Z"}`))
	}))
	defer server.Close()

	client := newTestBrokerClient(server.URL)
	ack, err := client.PlaceOrder(context.Background(), OrderRequest{
		Symbol:        "googl",
		Side:          "buy",
		Notional:      decimal.NewNullDecimal(decimal.RequireFromString("2000")),
		ClientOrderID: "c-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "o-1", ack.ID)
	assert.Equal(t, "accepted", ack.Status)
	assert.Equal(t, "GOOGL", body["symbol"])
	assert.Equal(t, "2000.00", body["notional"])
	assert.Equal(t, "market", body["type"])
	assert.Equal(t, "day", body["time_in_force"])
	assert.Equal(t, "c-1", body["client_order_id"])
	_, hasQty := body["qty"]
	assert.False(t, hasQty)
}

func TestBrokerClientPlaceOrderRequiresOneSize(t *testing.T) {
	client := newTestBrokerClient("http://127.0.0.1:1")
	_, err := client.PlaceOrder(context.Background(), OrderRequest{Symbol: "AAPL", Side: "buy"})
	assert.Error(t, err)
}

func TestBrokerClientClassifiesRejections(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"not active", 422, `{"code":42210000,"message":"asset REGN is not active"}`, ErrorKindAssetNotActive},
		{"not fractionable", 422, `{"code":42210000,"message":"asset XYZ is not fractionable"}`, ErrorKindAssetNotActive},
		{"buying power", 403, `{"code":40310000,"message":"insufficient buying power"}`, ErrorKindInsufficientBuyingPower},
		{"market closed", 422, `{"code":42210000,"message":"market is closed"}`, ErrorKindOther},
		{"plain text", 400, `bad request`, ErrorKindOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := newTestBrokerClient(server.URL)
			_, err := client.ClosePosition(context.Background(), "REGN")
			require.Error(t, err)

			var be *BrokerError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, tc.want, be.Kind)
			assert.Equal(t, tc.status, be.StatusCode)
			// domain rejections are never retried
			assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
		})
	}
}

func TestBrokerClientRetriesTransientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestBrokerClient(server.URL)
	positions, err := client.CurrentPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestBrokerClientCloseRetryAfterPositionGone(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v2/positions/AAPL", r.URL.Path)
		if atomic.AddInt32(&calls, 1) == 1 {
			// the close went through but the response was lost
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":40410000,"message":"position not found"}`))
	}))
	defer server.Close()

	client := newTestBrokerClient(server.URL)
	ack, err := client.ClosePosition(context.Background(), "aapl")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, "AAPL", ack.Symbol)
	assert.Equal(t, "filled", ack.Status)
	assert.NotEmpty(t, ack.ID)
	require.NotNil(t, ack.FilledAt)
}

func TestBrokerClientCloseMissingPositionFirstAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":40410000,"message":"position not found"}`))
	}))
	defer server.Close()

	client := newTestBrokerClient(server.URL)
	_, err := client.ClosePosition(context.Background(), "AAPL")
	require.Error(t, err)

	var be *BrokerError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusNotFound, be.StatusCode)
	assert.Equal(t, 1, be.Attempt)
}

func TestBrokerClientResolvesDuplicateClientOrderID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/orders":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":40010001,"message":"client_order_id must be unique"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v2/orders:by_client_order_id":
			assert.Equal(t, "c-9", r.URL.Query().Get("client_order_id"))
			_, _ = w.Write([]byte(`{"id":"o-9","client_order_id":"c-9","symbol":"AAPL","side":"sell","status":"filled"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestBrokerClient(server.URL)
	ack, err := client.PlaceOrder(context.Background(), OrderRequest{
		Symbol:        "AAPL",
		Side:          "sell",
		Notional:      decimal.NewNullDecimal(decimal.NewFromInt(500)),
		ClientOrderID: "c-9",
	})
	require.NoError(t, err)
	assert.Equal(t, "o-9", ack.ID)
}

func TestBrokerClientPacesCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewBrokerClient(Config{BaseURL: server.URL, MinInterval: 60 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.CurrentPositions(ctx)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
