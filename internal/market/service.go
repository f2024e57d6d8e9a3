package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	DefaultStreamURL = "wss://stream.binance.com:9443/ws"
	ReconnBaseDelay  = 1 * time.Second
	ReconnMaxDelay   = 30 * time.Second
	PingPeriod       = 15 * time.Second // Keep-alive interval
)

// StreamService keeps a ticker cache fed by the exchange's miniTicker
// websocket stream.
type StreamService struct {
	url         string
	conn        *websocket.Conn
	mu          sync.RWMutex
	writeMu     sync.Mutex
	tickers     map[string]*Ticker
	subs        []string
	ctx         context.Context
	cancel      context.CancelFunc
	isConnected bool
	nextID      int
}

func NewStreamService(url string) *StreamService {
	if url == "" {
		url = DefaultStreamURL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &StreamService{
		url:     url,
		tickers: make(map[string]*Ticker),
		subs:    make([]string, 0),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the connection loop in a background goroutine
func (s *StreamService) Start() {
	go s.runLoop()
}

func (s *StreamService) Stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

// Subscribe adds pairs (e.g. ETHUSDC) to the subscription list and updates
// the live connection if there is one.
func (s *StreamService) Subscribe(pairs []string) {
	s.mu.Lock()
	added := make([]string, 0, len(pairs))
	for _, raw := range pairs {
		pair := strings.ToUpper(strings.TrimSpace(raw))
		if pair == "" {
			continue
		}
		if _, ok := s.tickers[pair]; ok {
			continue
		}
		s.subs = append(s.subs, pair)
		s.tickers[pair] = NewTicker(pair)
		added = append(added, pair)
	}
	connected := s.isConnected
	s.mu.Unlock()

	if len(added) > 0 && connected {
		if err := s.sendSubscribe(added); err != nil {
			logger.Error("Failed to subscribe", "pairs", added, "error", err)
		}
	}
}

func (s *StreamService) GetTicker(pair string) *Ticker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tickers[strings.ToUpper(pair)]
}

func (s *StreamService) runLoop() {
	delay := ReconnBaseDelay

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, err := s.connect()
		if err != nil {
			logger.Error("Price stream connection failed", "error", err, "retry_in", delay)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > ReconnMaxDelay {
				delay = ReconnMaxDelay
			}
			continue
		}

		delay = ReconnBaseDelay
		s.mu.Lock()
		s.conn = conn
		s.isConnected = true
		allSubs := append([]string(nil), s.subs...)
		s.mu.Unlock()

		if len(allSubs) > 0 {
			if err := s.sendSubscribe(allSubs); err != nil {
				logger.Error("Failed to resubscribe", "error", err)
				conn.Close()
				s.setDisconnected()
				continue
			}
		}

		go s.pingLoop(conn)
		s.readLoop(conn)
		s.setDisconnected()
	}
}

func (s *StreamService) setDisconnected() {
	s.mu.Lock()
	s.isConnected = false
	s.conn = nil
	s.mu.Unlock()
}

func (s *StreamService) connect() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.url, nil)
	if err != nil {
		return nil, err
	}

	// No data (or pong) within PingPeriod + buffer means the connection is dead.
	readTimeout := PingPeriod + 10*time.Second
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	return conn, nil
}

func (s *StreamService) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

type miniTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

func (s *StreamService) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	readTimeout := PingPeriod + 10*time.Second

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				logger.Error("Price stream read error", "error", err)
			}
			return
		}
		s.handleMessage(message)
	}
}

func (s *StreamService) handleMessage(message []byte) {
	var msg miniTicker
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	// Subscription acks ({"result":null,"id":1}) carry no event type.
	if msg.EventType != "24hrMiniTicker" || msg.Symbol == "" {
		return
	}
	ticker := s.GetTicker(msg.Symbol)
	if ticker == nil {
		return
	}
	at := time.Now()
	if err := ticker.Update(msg.Close, at); err != nil {
		logger.Debug("Discarding malformed ticker", "pair", msg.Symbol, "error", err)
	}
}

func (s *StreamService) sendSubscribe(pairs []string) error {
	params := make([]string, 0, len(pairs))
	for _, p := range pairs {
		params = append(params, strings.ToLower(p)+"@miniTicker")
	}

	s.mu.Lock()
	conn := s.conn
	s.nextID++
	id := s.nextID
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}

	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     id,
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(msg)
}
