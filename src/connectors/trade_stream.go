package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/model"
)

const (
	streamTradeUpdates    = "trade_updates"
	streamAuthorization   = "authorization"
	defaultReconnectDelay = 2 * time.Second
	authTimeout           = 10 * time.Second
)

// TradeUpdate is one order lifecycle event pushed by the broker.
type TradeUpdate struct {
	Event     string              `json:"event"`
	Timestamp *time.Time          `json:"timestamp"`
	Price     decimal.NullDecimal `json:"price"`
	Qty       decimal.NullDecimal `json:"qty"`
	Order     OrderAck            `json:"order"`
}

// Status returns the order record status this update moves the order to.
func (u TradeUpdate) Status() string {
	if u.Order.Status != "" {
		return u.Order.Status
	}
	switch u.Event {
	case "fill":
		return model.OrderRecordStatusFilled
	case "partial_fill":
		return model.OrderRecordStatusPartiallyFilled
	case "canceled":
		return model.OrderRecordStatusCanceled
	case "expired":
		return model.OrderRecordStatusExpired
	case "rejected":
		return model.OrderRecordStatusRejected
	default:
		return model.OrderRecordStatusNew
	}
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type authData struct {
	Status string `json:"status"`
	Action string `json:"action"`
}

// TradeUpdateHandler consumes one update. A returned error is logged and the
// stream keeps going.
type TradeUpdateHandler func(ctx context.Context, update TradeUpdate) error

// TradeUpdateStream follows the broker's trade_updates websocket channel.
type TradeUpdateStream struct {
	url            string
	apiKey         string
	apiSecret      string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	log            *logger.Entry
}

func NewTradeUpdateStream(cfg Config) *TradeUpdateStream {
	return &TradeUpdateStream{
		url:            cfg.StreamURL,
		apiKey:         cfg.APIKey,
		apiSecret:      cfg.APISecret,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
		log:            logger.WithField("component", "TradeUpdateStream"),
	}
}

// Run connects and dispatches updates until ctx is done, reconnecting after
// read errors. It returns ctx.Err() on shutdown, or an error when
// authentication is refused.
func (s *TradeUpdateStream) Run(ctx context.Context, handle TradeUpdateHandler) error {
	for {
		err := s.session(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var authErr *streamAuthError
		if errors.As(err, &authErr) {
			return err
		}

		s.log.WithError(err).Warnf("trade update stream dropped, reconnecting in %s", s.reconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectDelay):
		}
	}
}

type streamAuthError struct{ status string }

func (e *streamAuthError) Error() string {
	return fmt.Sprintf("trade update stream authorization failed: %s", e.status)
}

func (s *TradeUpdateStream) session(ctx context.Context, handle TradeUpdateHandler) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := s.authenticate(conn); err != nil {
		return err
	}

	if err := conn.WriteJSON(map[string]interface{}{
		"action": "listen",
		"data":   map[string][]string{"streams": {streamTradeUpdates}},
	}); err != nil {
		return fmt.Errorf("subscribe trade updates: %w", err)
	}
	s.log.Info("listening for trade updates")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read trade update: %w", err)
		}

		var env streamEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			s.log.WithError(err).Warn("unparseable stream message")
			continue
		}
		if env.Stream != streamTradeUpdates {
			continue
		}

		var update TradeUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			s.log.WithError(err).Warn("unparseable trade update")
			continue
		}

		if err := handle(ctx, update); err != nil {
			s.log.WithFields(logger.Fields{
				"order_id": update.Order.ID,
				"event":    update.Event,
			}).WithError(err).Error("trade update handler failed")
		}
	}
}

func (s *TradeUpdateStream) authenticate(conn *websocket.Conn) error {
	if err := conn.WriteJSON(map[string]string{
		"action": "auth",
		"key":    s.apiKey,
		"secret": s.apiSecret,
	}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read auth reply: %w", err)
		}
		var env streamEnvelope
		if err := json.Unmarshal(msg, &env); err != nil || env.Stream != streamAuthorization {
			continue
		}
		var data authData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("decode auth reply: %w", err)
		}
		if data.Status != "authorized" {
			return &streamAuthError{status: data.Status}
		}
		return nil
	}
}
