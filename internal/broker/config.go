package broker

import (
	"time"

	"bitflyer-broker/internal/config"
)

// OptionsFromConfig maps a loaded config onto broker options. Audit sink
// and transport overrides are left for the caller.
func OptionsFromConfig(cfg config.Config) Options {
	product := Spot()
	if cfg.Broker.Product == config.ProductFX {
		product = FX()
	}
	return Options{
		APIKey:         cfg.Exchange.APIKey,
		APISecret:      cfg.Exchange.APISecret,
		RestBaseURL:    cfg.Exchange.RestBaseURL,
		GetTimeout:     time.Duration(cfg.Exchange.GetTimeoutSec) * time.Second,
		PostTimeout:    time.Duration(cfg.Exchange.PostTimeoutSec) * time.Second,
		Product:        product,
		Log:            cfg.Audit.Enabled,
		LogDir:         cfg.Audit.Dir,
		MaxOrderAmount: cfg.Broker.MaxOrderAmount.Decimal,
	}
}
