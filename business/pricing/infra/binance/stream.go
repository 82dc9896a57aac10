package binance

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/wsconn"
)

// BaseWSURL is the Binance combined-stream endpoint.
const BaseWSURL = "wss://stream.binance.com:9443"

// lastQuote is the most recent mid price seen on the stream for a pair.
type lastQuote struct {
	price decimal.Decimal
	at    time.Time
}

// Stream maintains a live last-quote per subscribed pair from the
// bookTicker WebSocket feed.
type Stream struct {
	logger logger.LoggerInterface
	client *wsconn.Client

	quotes   map[string]lastQuote // keyed by upper-case pair, e.g. "SOMIUSDT"
	quotesMu sync.RWMutex
}

// NewStream subscribes to the bookTicker feed for the given pairs.
func NewStream(wsURL string, pairs []string, log logger.LoggerInterface) (*Stream, error) {
	if wsURL == "" {
		wsURL = BaseWSURL
	}

	streams := make([]string, len(pairs))
	for i, p := range pairs {
		streams[i] = strings.ToLower(p) + "@bookTicker"
	}
	url := wsURL + "/stream?streams=" + strings.Join(streams, "/")

	client, err := wsconn.New(wsconn.DefaultConfig(url, "binance-bookticker"))
	if err != nil {
		return nil, err
	}

	s := &Stream{
		logger: log,
		client: client,
		quotes: make(map[string]lastQuote),
	}
	client.OnMessage(s.handleFrame)
	return s, nil
}

// Connect starts the stream with automatic reconnection.
func (s *Stream) Connect(ctx context.Context) error {
	return s.client.ConnectWithRetry(ctx)
}

// Close tears the connection down.
func (s *Stream) Close() error {
	return s.client.Close()
}

// State reports connection state.
func (s *Stream) State() wsconn.State {
	return s.client.State()
}

// Quote returns the last mid price for pair if seen within maxAge.
func (s *Stream) Quote(pair string, maxAge time.Duration) (decimal.Decimal, time.Time, bool) {
	s.quotesMu.RLock()
	q, ok := s.quotes[strings.ToUpper(pair)]
	s.quotesMu.RUnlock()

	if !ok || time.Since(q.at) > maxAge {
		return decimal.Zero, time.Time{}, false
	}
	return q.price, q.at, true
}

func (s *Stream) handleFrame(ctx context.Context, data []byte) {
	var wrapper StreamEvent
	if err := json.Unmarshal(data, &wrapper); err != nil {
		s.logger.Debug(ctx, "unparseable stream frame", "error", err)
		return
	}
	if !strings.HasSuffix(wrapper.Stream, "@bookTicker") {
		return
	}

	var event BookTickerEvent
	if err := json.Unmarshal(wrapper.Data, &event); err != nil {
		s.logger.Debug(ctx, "unparseable bookTicker event", "error", err)
		return
	}

	mid, err := event.MidPrice()
	if err != nil {
		s.logger.Debug(ctx, "unparseable bookTicker prices", "symbol", event.Symbol, "error", err)
		return
	}

	s.quotesMu.Lock()
	s.quotes[strings.ToUpper(event.Symbol)] = lastQuote{price: mid, at: time.Now()}
	s.quotesMu.Unlock()
}
