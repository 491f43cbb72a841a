package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-broker/internal/audit"
	"bitflyer-broker/internal/core"
)

type notifierSpy struct {
	block   <-chan struct{}
	entered chan struct{}
	once    sync.Once

	mu   sync.Mutex
	msgs []string
}

func (n *notifierSpy) Notify(ctx context.Context, msg string) error {
	if n.entered != nil {
		n.once.Do(func() { close(n.entered) })
	}
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
	return nil
}

func (n *notifierSpy) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type alerterSpy struct {
	events []string
	fields []map[string]string
}

func (a *alerterSpy) Important(event string, fields map[string]string) {
	a.events = append(a.events, event)
	a.fields = append(a.fields, fields)
}

func closeManager(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestManagerCloseFlushesQueuedEvents(t *testing.T) {
	spy := &notifierSpy{}
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager("bfmonitor", "BTC_JPY", spy, ManagerOptions{Now: func() time.Time { return fixed }})

	m.Important("broker_unhealthy", map[string]string{"health": "STOP"})
	m.Important("board_closed", nil)
	closeManager(t, m)

	msgs := spy.messages()
	if len(msgs) != 2 {
		t.Fatalf("notified count = %d, want 2", len(msgs))
	}
	for _, want := range []string{"[bfmonitor] important", "time: 2024-03-01T00:00:00Z", "product: BTC_JPY", "event: broker_unhealthy", "health: STOP"} {
		if !strings.Contains(msgs[0], want) {
			t.Fatalf("first message missing %q, got %q", want, msgs[0])
		}
	}
}

func TestManagerDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	spy := &notifierSpy{block: block, entered: make(chan struct{})}
	m := NewManager("bfbroker", "BTC_JPY", spy, ManagerOptions{QueueSize: 1})

	m.Important("first", nil)
	<-spy.entered
	m.Important("second", nil)
	m.Important("third", nil)
	if got := m.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
	close(block)
	closeManager(t, m)
	if got := len(spy.messages()); got != 2 {
		t.Fatalf("notified count = %d, want 2", got)
	}
}

func TestManagerIgnoresEventsAfterClose(t *testing.T) {
	spy := &notifierSpy{}
	m := NewManager("bfbroker", "BTC_JPY", spy, ManagerOptions{})
	closeManager(t, m)
	m.Important("late", nil)
	closeManager(t, m)
	if got := len(spy.messages()); got != 0 {
		t.Fatalf("notified count = %d, want 0", got)
	}
}

func TestNilManagerIsNoop(t *testing.T) {
	m := NewManager("bfbroker", "BTC_JPY", nil, ManagerOptions{})
	if m != nil {
		t.Fatalf("NewManager(nil notifier) = %v, want nil", m)
	}
	m.Important("ignored", nil)
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestTelegramNotifierPostsMessage(t *testing.T) {
	var got sendMessageRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramOptions{BotToken: "tok", ChatID: "42", APIBaseURL: srv.URL + "/"})
	if err := n.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Fatalf("path = %q, want /bottok/sendMessage", path)
	}
	if got.ChatID != "42" || got.Text != "hello" {
		t.Fatalf("request = %+v", got)
	}
}

func TestTelegramNotifierReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramOptions{BotToken: "tok", ChatID: "0", APIBaseURL: srv.URL})
	err := n.Notify(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("Notify() error = %v, want chat not found", err)
	}
}

func TestTelegramNotifierReportsHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramOptions{BotToken: "bad", ChatID: "0", APIBaseURL: srv.URL})
	err := n.Notify(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("Notify() error = %v, want status=401", err)
	}
}

type errSink struct{}

func (errSink) Append(audit.Entry) error { return errors.New("disk full") }

func TestAuditSinkAlertsOnFailedEntries(t *testing.T) {
	spy := &alerterSpy{}
	mem := audit.NewMemorySink()
	sink := NewAuditSink(mem, spy)

	ok := audit.Entry{Event: core.EventOrderBuyLimit, OrderID: "JRF-1", Success: true}
	failed := audit.Entry{
		Event:    core.EventOCOSellLimitStop,
		Price:    decimal.NewNullDecimal(decimal.RequireFromString("3000000")),
		Amount:   decimal.NewNullDecimal(decimal.RequireFromString("0.01")),
		Facility: "OCO2:STOP",
	}
	if err := sink.Append(ok); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := sink.Append(failed); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if got := len(mem.Entries()); got != 2 {
		t.Fatalf("forwarded entries = %d, want 2", got)
	}
	if len(spy.events) != 1 || spy.events[0] != "order_action_failed:OCO_SELL_LIMIT_STOP" {
		t.Fatalf("alerts = %v, want one order_action_failed", spy.events)
	}
	fields := spy.fields[0]
	if fields["price"] != "3000000" || fields["amount"] != "0.01" || fields["facility"] != "OCO2:STOP" || fields["order_id"] != "" {
		t.Fatalf("alert fields = %v", fields)
	}
}

func TestAuditSinkReturnsWrappedError(t *testing.T) {
	spy := &alerterSpy{}
	sink := NewAuditSink(errSink{}, spy)
	if err := sink.Append(audit.Entry{Event: core.EventOrderCancel}); err == nil {
		t.Fatalf("Append() error = nil, want wrapped sink error")
	}
	if len(spy.events) != 1 {
		t.Fatalf("alerts = %d, want 1", len(spy.events))
	}
}
