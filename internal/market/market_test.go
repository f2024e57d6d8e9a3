package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "ETHUSDC", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"ETHUSDC","price":"2450.12000000"}`))
	}))
	defer srv.Close()

	price, err := NewRESTClient(srv.URL, time.Second).Price(context.Background(), "ethusdc")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("2450.12")))
}

func TestRESTPriceErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDC","price":"n/a"}`))
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := NewRESTClient(srv.URL, time.Second).Price(context.Background(), "ETHUSDC")
			assert.Error(t, err)
		})
	}
}

func TestKlineAverage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`[
			[1, "10", "14", "6", "10", "0", 2],
			[3, "20", "24", "16", "20", "0", 4]
		]`))
	}))
	defer srv.Close()

	avg, err := NewRESTClient(srv.URL, time.Second).KlineAverage(context.Background(), "ETHUSDC", "1d", 2)
	require.NoError(t, err)
	assert.True(t, avg.Equal(decimal.NewFromInt(15)), avg.String())
}

type staticFeed struct {
	price decimal.Decimal
	calls int
}

func (s *staticFeed) Price(ctx context.Context, pair string) (decimal.Decimal, error) {
	s.calls++
	return s.price, nil
}

func TestCachedFeedUsesFreshStreamPrice(t *testing.T) {
	stream := NewStreamService("")
	stream.Subscribe([]string{"ethusdc"})
	now := time.Now()
	require.NoError(t, stream.GetTicker("ETHUSDC").Update("2500", now))

	rest := &staticFeed{price: decimal.NewFromInt(1)}
	feed := NewCachedFeed(stream, rest, 10*time.Second)
	feed.now = func() time.Time { return now.Add(5 * time.Second) }

	price, err := feed.Price(context.Background(), "ETHUSDC")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(2500)))
	assert.Zero(t, rest.calls)

	feed.now = func() time.Time { return now.Add(11 * time.Second) }
	price, err = feed.Price(context.Background(), "ETHUSDC")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 1, rest.calls)
}

func TestStreamServiceReceivesTickers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan []string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub struct {
			Method string   `json:"method"`
			Params []string `json:"params"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		select {
		case subscribed <- sub.Params:
		default:
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"24hrMiniTicker","E":1,"s":"ETHUSDC","c":"2600.5"}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	stream := NewStreamService("ws" + strings.TrimPrefix(srv.URL, "http"))
	stream.Subscribe([]string{"ETHUSDC"})
	stream.Start()
	defer stream.Stop()

	select {
	case params := <-subscribed:
		assert.Equal(t, []string{"ethusdc@miniTicker"}, params)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription received")
	}

	assert.Eventually(t, func() bool {
		price, at := stream.GetTicker("ETHUSDC").Last()
		return !at.IsZero() && price.Equal(decimal.RequireFromString("2600.5"))
	}, 2*time.Second, 10*time.Millisecond)
}
