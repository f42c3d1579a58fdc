package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tradepulse/internal/domain"
)

// tickerMessage is the wire shape of one feed update.
type tickerMessage struct {
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Volume     float64   `json:"volume"`
	Timestamp  time.Time `json:"ts"`
}

// WSFeed subscribes to a websocket ticker stream and rolls updates into
// per-instrument OHLCV bars, keeping a bounded trailing window so the
// indicator stage always has warm-up history. It implements Source.
type WSFeed struct {
	url         string
	instruments []string
	barInterval time.Duration
	maxBars     int
	redialWait  time.Duration

	mu      sync.RWMutex
	bars    map[string][]domain.Bar
	current map[string]*domain.Bar
	latest  map[string]tickerMessage
}

// NewWSFeed creates a feed for the given instruments. maxBars bounds
// the trailing window and must cover the indicator warm-up period.
func NewWSFeed(url string, instruments []string, barInterval time.Duration, maxBars int) *WSFeed {
	if maxBars < 2*domain.MinIndicatorBars {
		maxBars = 2 * domain.MinIndicatorBars
	}
	if barInterval <= 0 {
		barInterval = time.Minute
	}
	return &WSFeed{
		url:         url,
		instruments: instruments,
		barInterval: barInterval,
		maxBars:     maxBars,
		redialWait:  5 * time.Second,
		bars:        make(map[string][]domain.Bar),
		current:     make(map[string]*domain.Bar),
		latest:      make(map[string]tickerMessage),
	}
}

// Run connects and consumes the stream until the context ends,
// redialing with a flat backoff on connection loss.
func (f *WSFeed) Run(ctx context.Context) error {
	for {
		if err := f.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("url", f.url).Msg("feed disconnected, redialing")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.redialWait):
		}
	}
}

func (f *WSFeed) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{"op": "subscribe", "instruments": f.instruments}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// The watcher must not outlive this connection: a redial loop on a
	// flaky feed would otherwise accumulate one blocked goroutine per
	// reconnect.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		var msg tickerMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Debug().Err(err).Msg("skipping malformed feed message")
			continue
		}
		if msg.Instrument == "" || msg.Price <= 0 {
			continue
		}
		f.ingest(msg)
	}
}

// ingest folds one tick into the instrument's in-progress bar, sealing
// it into the window when the bar interval rolls over.
func (f *WSFeed) ingest(msg tickerMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latest[msg.Instrument] = msg

	bucket := msg.Timestamp.Truncate(f.barInterval)
	cur := f.current[msg.Instrument]

	if cur == nil || cur.Timestamp.Before(bucket) {
		if cur != nil {
			window := append(f.bars[msg.Instrument], *cur)
			if len(window) > f.maxBars {
				window = window[len(window)-f.maxBars:]
			}
			f.bars[msg.Instrument] = window
		}
		f.current[msg.Instrument] = &domain.Bar{
			Timestamp: bucket,
			Open:      msg.Price,
			High:      msg.Price,
			Low:       msg.Price,
			Close:     msg.Price,
			Volume:    msg.Volume,
		}
		return
	}

	if msg.Price > cur.High {
		cur.High = msg.Price
	}
	if msg.Price < cur.Low {
		cur.Low = msg.Price
	}
	cur.Close = msg.Price
	cur.Volume += msg.Volume
}

// GetSnapshot returns the instrument's latest price and trailing bar
// window. Instruments with no data yet report ErrDataUnavailable.
func (f *WSFeed) GetSnapshot(_ context.Context, instrument string) (domain.MarketSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	msg, ok := f.latest[instrument]
	if !ok {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: no feed data for %s", domain.ErrDataUnavailable, instrument)
	}

	window := f.bars[instrument]
	bars := make([]domain.Bar, len(window))
	copy(bars, window)

	return domain.MarketSnapshot{
		Instrument: instrument,
		Price:      msg.Price,
		Bid:        msg.Bid,
		Ask:        msg.Ask,
		Timestamp:  msg.Timestamp,
		Bars:       bars,
	}, nil
}
