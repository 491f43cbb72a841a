package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"bitflyer-broker/internal/core"
	"bitflyer-broker/internal/exchange/bitflyer"
)

type Product string

const (
	ProductSpot Product = "spot"
	ProductFX   Product = "fx"
)

type Config struct {
	Exchange      ExchangeConfig      `yaml:"exchange"`
	Broker        BrokerConfig        `yaml:"broker"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
	Stream        StreamConfig        `yaml:"stream"`
}

type ExchangeConfig struct {
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	RestBaseURL    string `yaml:"rest_base_url"`
	WSBaseURL      string `yaml:"ws_base_url"`
	GetTimeoutSec  int64  `yaml:"get_timeout_sec"`
	PostTimeoutSec int64  `yaml:"post_timeout_sec"`
}

type BrokerConfig struct {
	Product        Product `yaml:"product"`
	MaxOrderAmount Decimal `yaml:"max_order_amount"`
}

type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type ObservabilityConfig struct {
	MetricsAddr     string         `yaml:"metrics_addr"`
	PollIntervalSec int64          `yaml:"poll_interval_sec"`
	Telegram        TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

type StreamConfig struct {
	Channels []string `yaml:"channels"`
	OutDir   string   `yaml:"out_dir"`
}

// envOverlay holds credentials that may come from the environment or a
// .env file instead of the YAML document. Non-empty values win.
type envOverlay struct {
	APIKey           string `envconfig:"BITFLYER_API_KEY"`
	APISecret        string `envconfig:"BITFLYER_API_SECRET"`
	TelegramBotToken string `envconfig:"BITFLYER_TELEGRAM_BOT_TOKEN"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	if err := cfg.applyEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv loads dotenv (when present) into the process environment without
// overriding variables already set, then overlays the credential variables.
func (c *Config) applyEnv(dotenv string) error {
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			return fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	var env envOverlay
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if env.APIKey != "" {
		c.Exchange.APIKey = env.APIKey
	}
	if env.APISecret != "" {
		c.Exchange.APISecret = env.APISecret
	}
	if env.TelegramBotToken != "" {
		c.Observability.Telegram.BotToken = env.TelegramBotToken
	}
	return nil
}

func (c *Config) normalize() {
	c.Exchange.APIKey = strings.TrimSpace(c.Exchange.APIKey)
	c.Exchange.APISecret = strings.TrimSpace(c.Exchange.APISecret)
	c.Exchange.RestBaseURL = strings.TrimRight(strings.TrimSpace(c.Exchange.RestBaseURL), "/")
	c.Exchange.WSBaseURL = strings.TrimSpace(c.Exchange.WSBaseURL)
	c.Broker.Product = Product(strings.ToLower(strings.TrimSpace(string(c.Broker.Product))))
	c.Audit.Dir = strings.TrimSpace(c.Audit.Dir)
	c.Observability.MetricsAddr = strings.TrimSpace(c.Observability.MetricsAddr)
	c.Observability.Telegram.BotToken = strings.TrimSpace(c.Observability.Telegram.BotToken)
	c.Observability.Telegram.ChatID = strings.TrimSpace(c.Observability.Telegram.ChatID)
	c.Observability.Telegram.APIBaseURL = strings.TrimSpace(c.Observability.Telegram.APIBaseURL)
	c.Stream.OutDir = strings.TrimSpace(c.Stream.OutDir)
	channels := c.Stream.Channels[:0]
	for _, ch := range c.Stream.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	c.Stream.Channels = channels
}

func (c *Config) applyDefaults() {
	if c.Exchange.RestBaseURL == "" {
		c.Exchange.RestBaseURL = bitflyer.DefaultRestBaseURL
	}
	if c.Exchange.WSBaseURL == "" {
		c.Exchange.WSBaseURL = bitflyer.DefaultRealtimeURL
	}
	if c.Exchange.GetTimeoutSec == 0 {
		c.Exchange.GetTimeoutSec = 10
	}
	if c.Exchange.PostTimeoutSec == 0 {
		c.Exchange.PostTimeoutSec = 10
	}
	if c.Broker.Product == "" {
		c.Broker.Product = ProductSpot
	}
	if c.Audit.Dir == "" {
		c.Audit.Dir = "log"
	}
	if c.Observability.MetricsAddr == "" {
		c.Observability.MetricsAddr = ":9100"
	}
	if c.Observability.PollIntervalSec == 0 {
		c.Observability.PollIntervalSec = 30
	}
	if c.Observability.Telegram.APIBaseURL == "" {
		c.Observability.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Observability.Telegram.TimeoutSec == 0 {
		c.Observability.Telegram.TimeoutSec = 10
	}
	if len(c.Stream.Channels) == 0 {
		c.Stream.Channels = []string{bitflyer.TickerChannel(c.ProductCode())}
	}
	if c.Stream.OutDir == "" {
		c.Stream.OutDir = filepath.Join("data", "bitflyer")
	}
}

// ProductCode maps the configured product to the exchange product code.
func (c Config) ProductCode() core.ProductCode {
	if c.Broker.Product == ProductFX {
		return core.FXBTCJPY
	}
	return core.BTCJPY
}

func (c Config) Validate() error {
	switch c.Broker.Product {
	case ProductSpot, ProductFX:
	default:
		return fmt.Errorf("broker.product must be spot or fx")
	}
	if c.Broker.MaxOrderAmount.IsNegative() {
		return fmt.Errorf("broker.max_order_amount must be >= 0")
	}
	if c.Exchange.GetTimeoutSec < 1 || c.Exchange.GetTimeoutSec > 120 {
		return fmt.Errorf("exchange get_timeout_sec must be between 1 and 120")
	}
	if c.Exchange.PostTimeoutSec < 1 || c.Exchange.PostTimeoutSec > 120 {
		return fmt.Errorf("exchange post_timeout_sec must be between 1 and 120")
	}
	if err := validateURL(c.Exchange.RestBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("exchange rest_base_url %v", err)
	}
	if err := validateURL(c.Exchange.WSBaseURL, "ws", "wss"); err != nil {
		return fmt.Errorf("exchange ws_base_url %v", err)
	}
	if (c.Exchange.APIKey == "") != (c.Exchange.APISecret == "") {
		return fmt.Errorf("exchange api_key and api_secret must be set together")
	}
	if c.Observability.PollIntervalSec < 1 || c.Observability.PollIntervalSec > 3600 {
		return fmt.Errorf("observability.poll_interval_sec must be between 1 and 3600")
	}
	if c.Observability.Telegram.Enabled {
		if c.Observability.Telegram.BotToken == "" {
			return fmt.Errorf("observability.telegram.bot_token is required when telegram enabled")
		}
		if c.Observability.Telegram.ChatID == "" {
			return fmt.Errorf("observability.telegram.chat_id is required when telegram enabled")
		}
		if c.Observability.Telegram.TimeoutSec < 1 || c.Observability.Telegram.TimeoutSec > 120 {
			return fmt.Errorf("observability.telegram.timeout_sec must be between 1 and 120")
		}
		if err := validateURL(c.Observability.Telegram.APIBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("observability.telegram.api_base_url %v", err)
		}
	}
	return nil
}

// HasCredentials reports whether private endpoints can be signed.
func (c Config) HasCredentials() bool {
	return c.Exchange.APIKey != "" && c.Exchange.APISecret != ""
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
