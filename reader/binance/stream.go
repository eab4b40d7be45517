package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fundingflow/logger"
)

const streamEndpoint = "wss://fstream.binance.com/ws/!markPrice@arr"

type markPricePayload struct {
	Event           string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"`
}

// StreamRate is one cached funding rate from the mark price stream. Rate is
// the exchange-native fraction, not a percentage.
type StreamRate struct {
	Symbol          string
	Rate            float64
	NextFundingTime time.Time
	At              time.Time
}

// Stream maintains the latest funding rate per symbol from the combined
// mark price websocket. It reconnects on failure until the context ends.
type Stream struct {
	ctx     context.Context
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	rates   map[string]StreamRate
	log     *logger.Log
}

func NewStream(log *logger.Log) *Stream {
	return &Stream{
		rates: make(map[string]StreamRate),
		log:   log,
	}
}

func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("binance mark price stream already running")
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	s.log.WithComponent("binance_stream").Info("binance mark price stream started")
	return nil
}

func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.log.WithComponent("binance_stream").Info("stopping binance mark price stream")
	s.wg.Wait()
	s.log.WithComponent("binance_stream").Info("binance mark price stream stopped")
}

// Rates returns the cached rates no older than maxAge.
func (s *Stream) Rates(maxAge time.Duration) []StreamRate {
	cutoff := time.Now().Add(-maxAge)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StreamRate, 0, len(s.rates))
	for _, sr := range s.rates {
		if sr.At.After(cutoff) {
			out = append(out, sr)
		}
	}
	return out
}

func (s *Stream) run() {
	defer s.wg.Done()

	log := s.log.WithComponent("binance_stream").WithFields(logger.Fields{
		"endpoint": streamEndpoint,
	})

	dialer := websocket.Dialer{}
	reconnect := 5 * time.Second

	for {
		if s.ctx.Err() != nil {
			return
		}

		conn, _, err := dialer.Dial(streamEndpoint, nil)
		if err != nil {
			log.WithError(err).Warn("failed to connect to binance mark price websocket")
			select {
			case <-time.After(reconnect):
				continue
			case <-s.ctx.Done():
				return
			}
		}

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				conn.Close()
				log.WithError(err).Warn("binance mark price stream error, reconnecting")
				break
			}
			s.handleMessage(raw)
		}

		select {
		case <-time.After(reconnect):
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Stream) handleMessage(raw []byte) {
	var payloads []markPricePayload
	if err := json.Unmarshal(raw, &payloads); err != nil {
		s.log.WithComponent("binance_stream").WithError(err).Debug("failed to decode mark price payload")
		return
	}

	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range payloads {
		if p.Symbol == "" {
			continue
		}
		rate, err := strconv.ParseFloat(p.FundingRate, 64)
		if err != nil {
			continue
		}
		sr := StreamRate{Symbol: p.Symbol, Rate: rate, At: now}
		if p.NextFundingTime > 0 {
			sr.NextFundingTime = time.UnixMilli(p.NextFundingTime).UTC()
		}
		s.rates[p.Symbol] = sr
	}
}
