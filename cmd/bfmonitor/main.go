package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bitflyer-broker/internal/alert"
	"bitflyer-broker/internal/broker"
	"bitflyer-broker/internal/config"
	"bitflyer-broker/internal/core"
	"bitflyer-broker/internal/metrics"
)

const (
	probeHealth     = "health"
	probeBoardState = "board_state"
	probeTicker     = "ticker"
)

// exchangeReader is the read-only part of the broker the monitor polls.
type exchangeReader interface {
	GetBrokerStatus(ctx context.Context) (core.HealthStatus, error)
	GetDepthStatus(ctx context.Context) (core.HealthStatus, core.StateStatus, error)
	GetTicker(ctx context.Context) (any, error)
}

type monitor struct {
	exchange exchangeReader
	product  string
	alerts   alert.Alerter

	mu sync.Mutex
	up map[string]bool
}

func newMonitor(exchange exchangeReader, product string, alerts alert.Alerter) *monitor {
	return &monitor{exchange: exchange, product: product, alerts: alerts, up: map[string]bool{}}
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	opts := broker.OptionsFromConfig(cfg)
	opts.Log = false
	b, err := broker.New(opts)
	if err != nil {
		fatal(err.Error())
	}

	alerts := buildAlertManager(cfg)
	if alerts != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := alerts.Close(closeCtx); err != nil {
				fmt.Fprintf(os.Stderr, "close alert manager failed: %v\n", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	srv := &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("level=ERROR event=metrics_server_failed addr=%s err=%q", cfg.Observability.MetricsAddr, err.Error())
		}
	}()
	log.Printf("level=INFO event=monitor_started product=%s metrics_addr=%s interval_sec=%d", cfg.ProductCode(), cfg.Observability.MetricsAddr, cfg.Observability.PollIntervalSec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var alerter alert.Alerter
	if alerts != nil {
		alerter = alerts
	}
	m := newMonitor(b, string(cfg.ProductCode()), alerter)
	m.run(ctx, time.Duration(cfg.Observability.PollIntervalSec)*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func buildAlertManager(cfg config.Config) *alert.Manager {
	tg := cfg.Observability.Telegram
	if !tg.Enabled {
		return nil
	}
	notifier := alert.NewTelegramNotifier(alert.TelegramOptions{
		BotToken:   tg.BotToken,
		ChatID:     tg.ChatID,
		APIBaseURL: tg.APIBaseURL,
		Timeout:    time.Duration(tg.TimeoutSec) * time.Second,
	})
	return alert.NewManager("bfmonitor", string(cfg.ProductCode()), notifier, alert.ManagerOptions{})
}

func (m *monitor) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := m.probeOnce(ctx); err != nil {
			log.Printf("level=WARN event=monitor_probe_round_failed product=%s err=%q", m.product, err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// probeOnce runs every probe concurrently. A failing probe does not cancel
// the others; the first failure is returned after all have finished.
func (m *monitor) probeOnce(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		health, err := m.exchange.GetBrokerStatus(ctx)
		up := err == nil && health != core.HealthStop
		m.report(probeHealth, up, map[string]string{"health": string(health)}, err)
		return err
	})
	g.Go(func() error {
		health, state, err := m.exchange.GetDepthStatus(ctx)
		up := err == nil && health != core.HealthStop && state == core.StateRunning
		m.report(probeBoardState, up, map[string]string{"health": string(health), "state": string(state)}, err)
		return err
	})
	g.Go(func() error {
		raw, err := m.exchange.GetTicker(ctx)
		fields := map[string]string{}
		if err == nil {
			var ltp string
			ltp, err = lastTradedPrice(raw)
			fields["ltp"] = ltp
		}
		m.report(probeTicker, err == nil, fields, err)
		return err
	})
	return g.Wait()
}

func lastTradedPrice(raw any) (string, error) {
	ticker, ok := raw.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: ticker is %T", core.ErrDecode, raw)
	}
	ltp, err := core.ToDecimal(ticker["ltp"])
	if err != nil {
		return "", err
	}
	if !ltp.Valid {
		return "", fmt.Errorf("%w: ticker has no ltp", core.ErrDecode)
	}
	return ltp.Decimal.String(), nil
}

// report logs one probe result, updates its gauge and alerts when the probe
// changes between up and down.
func (m *monitor) report(probe string, up bool, fields map[string]string, err error) {
	metrics.SetProbe(probe, m.product, up)
	if ltp, ok := fields["ltp"]; ok && up {
		if price, parseErr := decimal.NewFromString(ltp); parseErr == nil {
			metrics.LastPrice.WithLabelValues(m.product).Set(price.InexactFloat64())
		}
	}
	level := "INFO"
	if !up {
		level = "WARN"
	}
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	log.Printf("level=%s event=monitor_probe probe=%s product=%s up=%t fields=%v err=%q", level, probe, m.product, up, fields, errText)

	m.mu.Lock()
	prev, seen := m.up[probe]
	m.up[probe] = up
	m.mu.Unlock()
	if m.alerts == nil || (seen && prev == up) || (!seen && up) {
		return
	}
	event := "probe_down:" + probe
	if up {
		event = "probe_recovered:" + probe
	}
	alertFields := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		alertFields[k] = v
	}
	if errText != "" {
		alertFields["err"] = errText
	}
	m.alerts.Important(event, alertFields)
}
