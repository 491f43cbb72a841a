package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperationCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(Operations.WithLabelValues("get_ticker", "BTC_JPY", "ok"))
	ObserveOperation("get_ticker", "BTC_JPY", "ok", time.Now())
	ObserveOperation("get_ticker", "BTC_JPY", "ok", time.Now())
	after := testutil.ToFloat64(Operations.WithLabelValues("get_ticker", "BTC_JPY", "ok"))
	if after-before != 2 {
		t.Fatalf("operations delta = %v, want 2", after-before)
	}
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	Register(registry)
	ObserveTransport("getticker", "200", time.Now())

	srv := httptest.NewServer(Handler(registry))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "bitflyer_transport_requests_total") {
		t.Fatalf("metrics output missing transport counter:\n%s", body)
	}
}

func TestSetProbe(t *testing.T) {
	SetProbe("health", "BTC_JPY", true)
	if got := testutil.ToFloat64(ProbeUp.WithLabelValues("health", "BTC_JPY")); got != 1 {
		t.Fatalf("probe_up = %v, want 1", got)
	}
	SetProbe("health", "BTC_JPY", false)
	if got := testutil.ToFloat64(ProbeUp.WithLabelValues("health", "BTC_JPY")); got != 0 {
		t.Fatalf("probe_up = %v, want 0", got)
	}
}
