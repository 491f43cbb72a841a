package bitflyer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bitflyer-broker/internal/core"
)

const (
	DefaultRealtimeURL = "wss://ws.lightstream.bitflyer.com/json-rpc"

	defaultPingInterval = 20 * time.Second
	defaultReadTimeout  = 60 * time.Second
)

func TickerChannel(code core.ProductCode) string {
	return "lightning_ticker_" + string(code)
}

func ExecutionsChannel(code core.ProductCode) string {
	return "lightning_executions_" + string(code)
}

const (
	ChildOrderEventsChannel  = "child_order_events"
	ParentOrderEventsChannel = "parent_order_events"
)

// Message is one channelMessage notification. Data is passed through as
// received.
type Message struct {
	Channel  string          `json:"channel"`
	Data     json.RawMessage `json:"data"`
	Received time.Time       `json:"received"`
}

type RealtimeOptions struct {
	URL       string
	APIKey    string
	APISecret string
	Dialer    *websocket.Dialer
	// PingInterval and ReadTimeout default to 20s and 60s. A connection
	// that delivers neither a frame nor a pong within ReadTimeout fails.
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

// Realtime subscribes to JSON-RPC channels of the lightstream endpoint.
type Realtime struct {
	url       string
	apiKey    string
	apiSecret string
	dialer    *websocket.Dialer
	ping      time.Duration
	timeout   time.Duration
	now       func() time.Time
}

func NewRealtime(opts RealtimeOptions) *Realtime {
	wsURL := strings.TrimSpace(opts.URL)
	if wsURL == "" {
		wsURL = DefaultRealtimeURL
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = defaultPingInterval
	}
	timeout := opts.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	if timeout < ping {
		timeout = ping * 3
	}
	return &Realtime{
		url:       wsURL,
		apiKey:    opts.APIKey,
		apiSecret: opts.APISecret,
		dialer:    dialer,
		ping:      ping,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Subscribe dials, authenticates when a private channel is requested, and
// streams channel messages until ctx ends or the connection fails. Both
// returned channels are closed when the stream stops.
func (r *Realtime) Subscribe(ctx context.Context, channels ...string) (<-chan Message, <-chan error, error) {
	if len(channels) == 0 {
		return nil, nil, errors.New("at least one channel required")
	}
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial %s: %v", core.ErrTransport, r.url, err)
	}
	if needsAuth(channels) {
		if err := r.auth(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
	}
	for _, ch := range channels {
		req := rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: "subscribe", Params: map[string]string{"channel": ch}}
		if err := conn.WriteJSON(req); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("%w: subscribe %s: %v", core.ErrTransport, ch, err)
		}
	}

	out := make(chan Message)
	errCh := make(chan error, 4)
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(r.timeout))
	})

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(r.ping)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					closeConn()
					return
				}
			case <-ctx.Done():
				closeConn()
				return
			case <-stop:
				closeConn()
				return
			}
		}
	}()

	go func() {
		defer close(errCh)
		defer close(out)
		defer close(stop)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(r.timeout))
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					reportErr(errCh, fmt.Errorf("%w: read: %v", core.ErrTransport, err))
				}
				return
			}
			var env rpcEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				reportErr(errCh, fmt.Errorf("%w: realtime frame: %v", core.ErrDecode, err))
				continue
			}
			if env.Error != nil {
				reportErr(errCh, fmt.Errorf("%w: rpc error %d: %s", core.ErrTransport, env.Error.Code, env.Error.Message))
				continue
			}
			if env.Method != "channelMessage" || env.Params == nil {
				continue
			}
			msg := Message{Channel: env.Params.Channel, Data: env.Params.Message, Received: r.now().UTC()}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errCh, nil
}

func (r *Realtime) auth(ctx context.Context, conn *websocket.Conn) error {
	if r.apiKey == "" || r.apiSecret == "" {
		return errors.Join(core.ErrUnauthorized, errors.New("api_key/api_secret required for private channels"))
	}
	id := uuid.NewString()
	if err := conn.WriteJSON(rpcRequest{JSONRPC: "2.0", ID: id, Method: "auth", Params: r.authParams()}); err != nil {
		return fmt.Errorf("%w: auth: %v", core.ErrTransport, err)
	}
	deadline := time.Now().Add(10 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: auth: %v", core.ErrTransport, err)
		}
		var env rpcEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.ID != id {
			continue
		}
		if env.Error != nil {
			return errors.Join(core.ErrUnauthorized, fmt.Errorf("auth rejected %d: %s", env.Error.Code, env.Error.Message))
		}
		if ok, _ := env.Result.(bool); !ok {
			return errors.Join(core.ErrUnauthorized, errors.New("auth rejected"))
		}
		return nil
	}
}

func (r *Realtime) authParams() map[string]any {
	ts := r.now().UnixMilli()
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	return map[string]any{
		"api_key":   r.apiKey,
		"timestamp": ts,
		"nonce":     nonce,
		"signature": sign(r.apiSecret, strconv.FormatInt(ts, 10)+nonce),
	}
}

func needsAuth(channels []string) bool {
	for _, ch := range channels {
		if ch == ChildOrderEventsChannel || ch == ParentOrderEventsChannel {
			return true
		}
	}
	return false
}

func reportErr(errCh chan error, err error) {
	select {
	case errCh <- err:
	default:
	}
}
