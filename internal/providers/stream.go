package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ignitelab/ignite/internal/domain"
)

// quoteFrame is the wire contract for the streaming quote feed. The
// vendor protocol behind it stays a black box.
type quoteFrame struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	BidBps     float64 `json:"spread_bps"`
	Volume     float64 `json:"volume"`
	AvgVol30d  float64 `json:"avg_volume_30d"`
	VWAP       float64 `json:"vwap"`
	ATRPct     float64 `json:"atr_pct"`
	TsUnixMs   int64   `json:"ts"`
}

// StreamAdapter consumes a websocket quote feed and serves the last
// observed quote per symbol. Fetch never blocks on the network; a
// symbol with no live quote yet returns nothing rather than a guess.
type StreamAdapter struct {
	name string
	url  string

	mu     sync.RWMutex
	last   map[string]quoteFrame
	health Health

	cancel context.CancelFunc
	done   chan struct{}
}

func NewStreamAdapter(name, url string) *StreamAdapter {
	return &StreamAdapter{
		name:   name,
		url:    url,
		last:   make(map[string]quoteFrame),
		health: Degraded, // degraded until the first frame lands
	}
}

func (s *StreamAdapter) Name() string      { return s.name }
func (s *StreamAdapter) Tier() domain.Tier { return domain.TierRealtime }
func (s *StreamAdapter) Kinds() []Kind     { return []Kind{KindQuote} }

func (s *StreamAdapter) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// Start launches the read loop with reconnect backoff.
func (s *StreamAdapter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop tears down the read loop and waits for it to exit.
func (s *StreamAdapter) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *StreamAdapter) run(ctx context.Context) {
	defer close(s.done)
	backoff := time.Second
	for {
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setHealth(Degraded)
			log.Warn().Err(err).Str("provider", s.name).
				Dur("backoff", backoff).Msg("quote stream dropped, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *StreamAdapter) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial quote stream: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read quote frame: %w", err)
		}
		var frame quoteFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Debug().Err(err).Str("provider", s.name).Msg("malformed quote frame")
			continue
		}
		if frame.Symbol == "" || frame.Price <= 0 {
			continue
		}
		s.mu.Lock()
		s.last[frame.Symbol] = frame
		s.health = Healthy
		s.mu.Unlock()
	}
}

func (s *StreamAdapter) setHealth(h Health) {
	s.mu.Lock()
	s.health = h
	s.mu.Unlock()
}

// Fetch serves the cached last quote. No quote yet means no data — the
// normalizer fails that symbol closed instead of scoring a stale price.
func (s *StreamAdapter) Fetch(_ context.Context, symbol string) ([]Response, error) {
	s.mu.RLock()
	frame, ok := s.last[symbol]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no live quote for %s", symbol)
	}

	asOf := time.UnixMilli(frame.TsUnixMs)
	fields := map[domain.FieldName]float64{
		domain.FieldPrice: frame.Price,
	}
	if frame.BidBps > 0 {
		fields[domain.FieldSpreadBps] = frame.BidBps
	}
	if frame.Volume > 0 {
		fields[domain.FieldSessionVolume] = frame.Volume
		fields[domain.FieldValueTradedUSD] = frame.Volume * frame.Price
	}
	if frame.AvgVol30d > 0 {
		fields[domain.FieldAvgVolume30d] = frame.AvgVol30d
		if frame.Volume > 0 {
			fields[domain.FieldRelVolume30d] = frame.Volume / frame.AvgVol30d
		}
	}
	if frame.VWAP > 0 {
		fields[domain.FieldVWAP] = frame.VWAP
	}
	if frame.ATRPct > 0 {
		fields[domain.FieldATRPct] = frame.ATRPct
	}

	return []Response{{
		Provider:   s.name,
		Tier:       domain.TierRealtime,
		Kind:       KindQuote,
		Symbol:     symbol,
		AsOf:       asOf,
		IngestedAt: time.Now(),
		Confidence: 1.0,
		Fields:     fields,
	}}, nil
}
