package bitflyer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitflyer-broker/internal/core"
)

type rpcTestServer struct {
	t        *testing.T
	authOK   bool
	received chan rpcRequest
}

func (s *rpcTestServer) handler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		var req struct {
			ID     string          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		s.received <- rpcRequest{ID: req.ID, Method: req.Method, Params: req.Params}
		switch req.Method {
		case "auth":
			if s.authOK {
				_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": true})
			} else {
				_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32000, "message": "bad signature"}})
			}
		case "subscribe":
			var p struct {
				Channel string `json:"channel"`
			}
			_ = json.Unmarshal(req.Params, &p)
			_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": true})
			_ = conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"method":  "channelMessage",
				"params": map[string]any{
					"channel": p.Channel,
					"message": map[string]any{"product_code": "BTC_JPY", "ltp": 3000000},
				},
			})
		}
	}
}

func newRPCTestServer(t *testing.T, authOK bool) (*rpcTestServer, string) {
	s := &rpcTestServer{t: t, authOK: authOK, received: make(chan rpcRequest, 16)}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRealtimeSubscribeDeliversChannelMessages(t *testing.T) {
	srv, wsURL := newRPCTestServer(t, true)
	rt := NewRealtime(RealtimeOptions{URL: wsURL})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, errs, err := rt.Subscribe(ctx, TickerChannel(core.BTCJPY))
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, "lightning_ticker_BTC_JPY", msg.Channel)
		assert.JSONEq(t, `{"product_code":"BTC_JPY","ltp":3000000}`, string(msg.Data))
		assert.False(t, msg.Received.IsZero())
	case err := <-errs:
		t.Fatalf("unexpected stream error: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for channel message")
	}

	req := <-srv.received
	assert.Equal(t, "subscribe", req.Method)
	assert.NotEmpty(t, req.ID)

	cancel()
	for range msgs {
	}
}

func TestRealtimePrivateChannelAuthenticatesFirst(t *testing.T) {
	srv, wsURL := newRPCTestServer(t, true)
	rt := NewRealtime(RealtimeOptions{URL: wsURL, APIKey: "k", APISecret: "s"})
	rt.now = fixedNow

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, _, err := rt.Subscribe(ctx, ChildOrderEventsChannel)
	require.NoError(t, err)

	first := <-srv.received
	require.Equal(t, "auth", first.Method)
	var params map[string]any
	require.NoError(t, json.Unmarshal(first.Params.(json.RawMessage), &params))
	nonce, _ := params["nonce"].(string)
	assert.Equal(t, "k", params["api_key"])
	assert.Len(t, nonce, 32)
	ts := strconv.FormatInt(fixedNow().UnixMilli(), 10)
	assert.Equal(t, sign("s", ts+nonce), params["signature"])

	second := <-srv.received
	assert.Equal(t, "subscribe", second.Method)

	msg := <-msgs
	assert.Equal(t, ChildOrderEventsChannel, msg.Channel)
}

func TestRealtimeAuthRejected(t *testing.T) {
	_, wsURL := newRPCTestServer(t, false)
	rt := NewRealtime(RealtimeOptions{URL: wsURL, APIKey: "k", APISecret: "bad"})

	_, _, err := rt.Subscribe(context.Background(), ParentOrderEventsChannel)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnauthorized))
}

func TestRealtimeRequiresChannel(t *testing.T) {
	rt := NewRealtime(RealtimeOptions{})
	_, _, err := rt.Subscribe(context.Background())
	assert.Error(t, err)
}

func TestRealtimeSilentConnectionTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		// Stop reading so pings are never answered.
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	rt := NewRealtime(RealtimeOptions{
		URL:          "ws" + strings.TrimPrefix(srv.URL, "http"),
		PingInterval: 50 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, errs, err := rt.Subscribe(ctx, TickerChannel(core.BTCJPY))
	require.NoError(t, err)

	select {
	case err, ok := <-errs:
		require.True(t, ok, "error channel closed without an error")
		assert.True(t, errors.Is(err, core.ErrTransport), "err = %v", err)
	case <-ctx.Done():
		t.Fatal("silent connection did not time out")
	}
	for range msgs {
	}
}
