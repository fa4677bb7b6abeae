package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	gcerrors "ghost-coach/internal/errors"
	"ghost-coach/internal/models"
	"ghost-coach/pkg/utils"
)

// BinanceFeed streams spot market data from Binance.
type BinanceFeed struct {
	symbol   string
	interval models.Interval
	restBase string
	wsBase   string
	hc       *http.Client

	conn *websocket.Conn

	// Handlers
	onUpdate     func(Update)
	onError      func(error)
	onConnect    func()
	onDisconnect func()

	// State
	connected bool
	closed    bool

	// Reconnection
	maxRetries int
	baseDelay  time.Duration

	mu sync.RWMutex
}

// BinanceFeedConfig holds configuration for the feed.
type BinanceFeedConfig struct {
	Symbol     string
	Interval   models.Interval
	RESTBase   string
	WSBase     string
	MaxRetries int
	BaseDelay  time.Duration
}

// NewBinanceFeed creates a new Binance feed instance.
func NewBinanceFeed(cfg BinanceFeedConfig) *BinanceFeed {
	restBase := cfg.RESTBase
	if restBase == "" {
		restBase = "https://api.binance.com"
	}
	wsBase := cfg.WSBase
	if wsBase == "" {
		wsBase = "wss://stream.binance.com:9443/ws"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = time.Second
	}

	return &BinanceFeed{
		symbol:     strings.ToUpper(cfg.Symbol),
		interval:   cfg.Interval,
		restBase:   strings.TrimRight(restBase, "/"),
		wsBase:     strings.TrimRight(wsBase, "/"),
		hc:         &http.Client{Timeout: 10 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// FetchHistory retrieves recent closed candles via the klines REST endpoint.
func (f *BinanceFeed) FetchHistory(ctx context.Context, limit int) ([]models.Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	q := url.Values{}
	q.Set("symbol", f.symbol)
	q.Set("interval", string(f.interval))
	q.Set("limit", strconv.Itoa(limit))
	u := f.restBase + "/api/v3/klines?" + q.Encode()

	body, err := utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		res, err := f.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()
		bs, _ := io.ReadAll(res.Body)
		if res.StatusCode/100 != 2 {
			return nil, fmt.Errorf("binance GET /api/v3/klines: %s", string(bs))
		}
		return bs, nil
	})
	if err != nil {
		return nil, gcerrors.NewFeedError(f.symbol, "fetch_history", "klines request failed", err)
	}

	candles, err := ParseKlines(body)
	if err != nil {
		return nil, gcerrors.NewFeedError(f.symbol, "fetch_history", "klines decode failed", err)
	}
	return candles, nil
}

// ParseKlines decodes a Binance klines response.
// Each row is [ openTime, open, high, low, close, volume, closeTime, ... ].
func ParseKlines(data []byte) ([]models.Candle, error) {
	var raw [][]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		ms, ok := row[0].(float64)
		if !ok {
			continue
		}
		open, _ := strconv.ParseFloat(toStr(row[1]), 64)
		high, _ := strconv.ParseFloat(toStr(row[2]), 64)
		low, _ := strconv.ParseFloat(toStr(row[3]), 64)
		closePrice, _ := strconv.ParseFloat(toStr(row[4]), 64)
		vol, _ := strconv.ParseFloat(toStr(row[5]), 64)

		out = append(out, models.Candle{
			Timestamp: time.UnixMilli(int64(ms)).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    vol,
		})
	}
	return out, nil
}

func toStr(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// StreamURL returns the websocket endpoint for the configured symbol.
func (f *BinanceFeed) StreamURL() string {
	return fmt.Sprintf("%s/%s@kline_%s", f.wsBase, strings.ToLower(f.symbol), f.interval)
}

// Connect establishes the websocket stream and starts the read loop.
func (f *BinanceFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.connected {
		f.mu.Unlock()
		return nil
	}
	f.closed = false
	f.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.StreamURL(), nil)
	if err != nil {
		return gcerrors.NewFeedError(f.symbol, "connect", "websocket dial failed", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()

	if f.onConnect != nil {
		go f.onConnect()
	}

	go f.readLoop(ctx, conn)
	return nil
}

// Close tears down the stream and stops reconnection attempts.
func (f *BinanceFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.connected = false
	if f.conn != nil {
		err := f.conn.Close()
		f.conn = nil
		return err
	}
	return nil
}

// IsConnected returns whether the stream is up.
func (f *BinanceFeed) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// OnUpdate sets the update handler.
func (f *BinanceFeed) OnUpdate(handler func(Update)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onUpdate = handler
}

// OnError sets the error handler.
func (f *BinanceFeed) OnError(handler func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = handler
}

// OnConnect sets the connect handler.
func (f *BinanceFeed) OnConnect(handler func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = handler
}

// OnDisconnect sets the disconnect handler.
func (f *BinanceFeed) OnDisconnect(handler func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = handler
}

func (f *BinanceFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			f.mu.Lock()
			wasConnected := f.connected
			f.connected = false
			closed := f.closed
			f.mu.Unlock()

			if closed {
				return
			}
			if f.onDisconnect != nil && wasConnected {
				go f.onDisconnect()
			}
			f.reconnect(ctx)
			return
		}

		update, ok, err := ParseKlineMessage(msg)
		if err != nil {
			if f.onError != nil {
				go f.onError(gcerrors.NewFeedError(f.symbol, "stream", "malformed message", err))
			}
			continue
		}
		if !ok {
			continue
		}

		f.mu.RLock()
		handler := f.onUpdate
		f.mu.RUnlock()
		if handler != nil {
			handler(update)
		}
	}
}

// reconnect attempts to re-establish the stream with exponential backoff.
func (f *BinanceFeed) reconnect(ctx context.Context) {
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		delay := utils.CalculateBackoff(attempt, f.baseDelay, 30*time.Second, 2.0)
		if !waitBackoff(ctx, delay) {
			return
		}

		f.mu.RLock()
		closed := f.closed
		f.mu.RUnlock()
		if closed {
			return
		}

		if err := f.Connect(ctx); err == nil {
			return
		}
	}

	if f.onError != nil {
		f.onError(gcerrors.Wrap(gcerrors.ErrFeedDisconnected, "max reconnection attempts reached"))
	}
}

// waitBackoff sleeps for delay unless ctx is cancelled first. It reports
// whether the full delay elapsed.
func waitBackoff(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// klineMessage mirrors the Binance kline stream payload.
type klineMessage struct {
	EventType string `json:"e"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		IsClosed bool   `json:"x"`
	} `json:"k"`
}

// ParseKlineMessage decodes one websocket kline event into an Update.
// The second return value is false for non-kline events.
func ParseKlineMessage(data []byte) (Update, bool, error) {
	var msg klineMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Update{}, false, err
	}
	if msg.EventType != "kline" {
		return Update{}, false, nil
	}

	closePrice, err := strconv.ParseFloat(msg.Kline.Close, 64)
	if err != nil {
		return Update{}, false, fmt.Errorf("parsing close price: %w", err)
	}
	open, _ := strconv.ParseFloat(msg.Kline.Open, 64)
	high, _ := strconv.ParseFloat(msg.Kline.High, 64)
	low, _ := strconv.ParseFloat(msg.Kline.Low, 64)
	vol, _ := strconv.ParseFloat(msg.Kline.Volume, 64)

	return Update{
		Price:        closePrice,
		CandleClosed: msg.Kline.IsClosed,
		Candle: models.Candle{
			Timestamp: time.UnixMilli(msg.Kline.OpenTime).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    vol,
		},
	}, true, nil
}

// Ensure BinanceFeed implements Feed interface
var _ Feed = (*BinanceFeed)(nil)
