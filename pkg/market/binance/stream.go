package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quantcore/pkg/exchanges/common"
)

const listenKeyKeepAlive = 30 * time.Minute

// Opener dials Binance websocket streams. It satisfies
// common.StreamOpener; reconnecting is the caller's job, one dial per
// OpenStream call.
type Opener struct {
	rest   *Client
	wsBase string
	dialer *websocket.Dialer
}

// NewOpener builds an opener sharing the REST client's credentials
// (needed for the user data stream).
func NewOpener(rest *Client, testnet bool) *Opener {
	host := "stream.binance.com:9443"
	if testnet {
		host = "stream.testnet.binance.vision"
	}
	return &Opener{
		rest:   rest,
		wsBase: (&url.URL{Scheme: "wss", Host: host, Path: "/ws"}).String(),
		dialer: websocket.DefaultDialer,
	}
}

// OpenStream dials one stream. Symbols are lowercased per Binance's
// stream naming; timeframe applies to bar streams only.
func (o *Opener) OpenStream(ctx context.Context, kind common.StreamKind, symbol, timeframe string) (common.Stream, error) {
	switch kind {
	case common.StreamBars:
		name := fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), timeframe)
		return o.dial(ctx, name, parseKline, nil)
	case common.StreamTrades:
		name := strings.ToLower(symbol) + "@trade"
		return o.dial(ctx, name, parseTrade, nil)
	case common.StreamTicker:
		name := strings.ToLower(symbol) + "@bookTicker"
		return o.dial(ctx, name, parseBookTicker, nil)
	case common.StreamUser:
		return o.openUserStream(ctx)
	}
	return nil, fmt.Errorf("unknown stream kind %q", kind)
}

func (o *Opener) openUserStream(ctx context.Context) (common.Stream, error) {
	key, err := o.rest.CreateListenKey(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, errNoListenKey
	}

	keepCtx, stopKeep := context.WithCancel(context.Background())
	st, err := o.dial(ctx, key, parseUserEvent, stopKeep)
	if err != nil {
		stopKeep()
		return nil, err
	}
	go func() {
		ticker := time.NewTicker(listenKeyKeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-keepCtx.Done():
				return
			case <-ticker.C:
				if err := o.rest.KeepAliveListenKey(keepCtx, key); err != nil {
					// The read loop will surface the dropped stream.
					return
				}
			}
		}
	}()
	return st, nil
}

// parseFunc turns one raw frame into zero or more stream messages.
type parseFunc func([]byte) ([]any, error)

func (o *Opener) dial(ctx context.Context, name string, parse parseFunc, onClose func()) (common.Stream, error) {
	conn, resp, err := o.dialer.DialContext(ctx, o.wsBase+"/"+name, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("dial %s status %d: %w", name, resp.StatusCode, common.ErrAuth)
		}
		return nil, fmt.Errorf("dial %s: %w", name, err)
	}

	st := &wsStream{
		conn:    conn,
		msgs:    make(chan any, 100),
		errs:    make(chan error, 1),
		onClose: onClose,
	}
	go st.readLoop(parse)
	return st, nil
}

// wsStream pumps frames from one connection. A dedicated reader
// goroutine lets Recv honor context cancellation.
type wsStream struct {
	conn    *websocket.Conn
	msgs    chan any
	errs    chan error
	once    sync.Once
	onClose func()
}

func (s *wsStream) readLoop(parse parseFunc) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.errs <- err
			return
		}
		parsed, err := parse(raw)
		if err != nil {
			// Malformed frame; skip it rather than kill the stream.
			continue
		}
		for _, msg := range parsed {
			s.msgs <- msg
		}
	}
}

func (s *wsStream) Recv(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-s.msgs:
		return msg, nil
	case err := <-s.errs:
		return nil, err
	}
}

func (s *wsStream) Close() error {
	s.once.Do(func() {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// parseKline emits a Bar only when the candle is closed.
func parseKline(raw []byte) ([]any, error) {
	var msg struct {
		Kline struct {
			StartTime int64  `json:"t"`
			CloseTime int64  `json:"T"`
			Symbol    string `json:"s"`
			Interval  string `json:"i"`
			Open      string `json:"o"`
			Close     string `json:"c"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Volume    string `json:"v"`
			Final     bool   `json:"x"`
		} `json:"k"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	k := msg.Kline
	if !k.Final {
		return nil, nil
	}
	return []any{common.Bar{
		Symbol:    k.Symbol,
		Timeframe: k.Interval,
		OpenTime:  time.UnixMilli(k.StartTime),
		CloseTime: time.UnixMilli(k.CloseTime),
		Open:      toFloat(k.Open),
		High:      toFloat(k.High),
		Low:       toFloat(k.Low),
		Close:     toFloat(k.Close),
		Volume:    toFloat(k.Volume),
	}}, nil
}

func parseTrade(raw []byte) ([]any, error) {
	var msg struct {
		Symbol    string      `json:"s"`
		TradeID   json.Number `json:"t"`
		Price     string      `json:"p"`
		Qty       string      `json:"q"`
		TradeTime int64       `json:"T"`
		BuyerIsMM bool        `json:"m"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return []any{common.Trade{
		Symbol:  msg.Symbol,
		TradeID: msg.TradeID.String(),
		Price:   toFloat(msg.Price),
		Qty:     toFloat(msg.Qty),
		IsBuyer: !msg.BuyerIsMM,
		Time:    time.UnixMilli(msg.TradeTime),
	}}, nil
}

func parseBookTicker(raw []byte) ([]any, error) {
	var msg struct {
		Symbol string `json:"s"`
		Bid    string `json:"b"`
		BidQty string `json:"B"`
		Ask    string `json:"a"`
		AskQty string `json:"A"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return []any{common.Ticker{
		Symbol:   msg.Symbol,
		BidPrice: toFloat(msg.Bid),
		BidQty:   toFloat(msg.BidQty),
		AskPrice: toFloat(msg.Ask),
		AskQty:   toFloat(msg.AskQty),
		Time:     time.Now(),
	}}, nil
}

// parseUserEvent maps executionReport frames to an OrderUpdate plus,
// for trade executions, a Fill. Other user events are skipped.
func parseUserEvent(raw []byte) ([]any, error) {
	var probe struct {
		Event string `json:"e"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.Event != "executionReport" {
		return nil, nil
	}

	var msg struct {
		Symbol        string      `json:"s"`
		ClientOrderID string      `json:"c"`
		Side          string      `json:"S"`
		ExecType      string      `json:"x"`
		OrderStatus   string      `json:"X"`
		OrderID       json.Number `json:"i"`
		LastQty       string      `json:"l"`
		LastPrice     string      `json:"L"`
		CumQty        string      `json:"z"`
		TradeID       json.Number `json:"t"`
		TxTime        int64       `json:"T"`
		OrigClientID  string      `json:"C"` // set on cancels
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}

	clientID := msg.ClientOrderID
	if msg.OrigClientID != "" && msg.OrigClientID != "null" {
		clientID = msg.OrigClientID
	}
	side := common.Side(msg.Side)
	ts := time.UnixMilli(msg.TxTime)

	out := []any{common.OrderUpdate{
		ExchangeOrderID: msg.OrderID.String(),
		ClientID:        clientID,
		Symbol:          msg.Symbol,
		Side:            side,
		Status:          mapStatus(msg.OrderStatus),
		FilledQty:       toFloat(msg.CumQty),
		Time:            ts,
	}}
	if msg.ExecType == "TRADE" && toFloat(msg.LastQty) > 0 {
		out = append(out, common.Fill{
			ExchangeOrderID: msg.OrderID.String(),
			ClientID:        clientID,
			TradeID:         msg.TradeID.String(),
			Symbol:          msg.Symbol,
			Side:            side,
			Qty:             toFloat(msg.LastQty),
			Price:           toFloat(msg.LastPrice),
			Time:            ts,
		})
	}
	return out, nil
}
