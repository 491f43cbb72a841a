// Package broker is the order-lifecycle and account-state facade over the
// bitFlyer REST API. Every operation either returns its payload with a nil
// error or zero payloads with an *OpError; no panic leaves an operation.
package broker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-broker/internal/audit"
	"bitflyer-broker/internal/core"
	"bitflyer-broker/internal/exchange/bitflyer"
	"bitflyer-broker/internal/metrics"
)

const Name = "bitflyer"

// Transport performs one exchange call and returns the decoded JSON body.
type Transport interface {
	Call(ctx context.Context, ep bitflyer.Endpoint, params bitflyer.Params) (any, error)
}

// Product selects the traded product and the account model behind it.
// Margin products read collateral balances and support margin queries.
type Product struct {
	Code   core.ProductCode
	Margin bool
}

func Spot() Product {
	return Product{Code: core.BTCJPY}
}

func FX() Product {
	return Product{Code: core.FXBTCJPY, Margin: true}
}

type Options struct {
	APIKey      string
	APISecret   string
	RestBaseURL string
	GetTimeout  time.Duration
	PostTimeout time.Duration

	// Product defaults to Spot().
	Product Product

	// Log enables the CSV audit file under LogDir (default "log") when
	// Audit is nil. An explicit Audit sink always wins.
	Log    bool
	LogDir string
	Audit  audit.Sink

	// Transport replaces the signed REST client built from the credentials.
	Transport Transport

	// MaxOrderAmount rejects larger orders before they are sent; zero
	// disables the check.
	MaxOrderAmount decimal.Decimal

	Now func() time.Time
}

// Broker holds no mutable state after New and may be shared between
// goroutines.
type Broker struct {
	product   Product
	transport Transport
	audit     audit.Sink
	maxAmount decimal.Decimal
	now       func() time.Time
}

func New(opts Options) (*Broker, error) {
	product := opts.Product
	if product.Code == "" {
		product = Spot()
	}
	if opts.MaxOrderAmount.IsNegative() {
		return nil, fmt.Errorf("max order amount must be >= 0")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	transport := opts.Transport
	if transport == nil {
		transport = bitflyer.NewClient(bitflyer.Options{
			APIKey:      opts.APIKey,
			APISecret:   opts.APISecret,
			RestBaseURL: opts.RestBaseURL,
			GetTimeout:  opts.GetTimeout,
			PostTimeout: opts.PostTimeout,
		})
	}
	sink := opts.Audit
	if sink == nil {
		sink = audit.Discard
		if opts.Log {
			fileSink, err := audit.NewFileSink(opts.LogDir, Name, product.Code, now())
			if err != nil {
				return nil, fmt.Errorf("create audit log: %w", err)
			}
			sink = fileSink
		}
	}
	return &Broker{
		product:   product,
		transport: transport,
		audit:     sink,
		maxAmount: opts.MaxOrderAmount,
		now:       now,
	}, nil
}

func (b *Broker) Product() Product {
	return b.product
}

// run executes one operation body, converting panics and errors into an
// *OpError and recording diagnostics uniformly for every operation.
func (b *Broker) run(op string, fn func() error) (err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = decodef("panic: %v", r)
		}
		outcome := "ok"
		if err != nil {
			opErr := &OpError{Op: op, Kind: kindOf(err), Err: err}
			err = opErr
			outcome = string(opErr.Kind)
			log.Printf(
				"level=WARN event=broker_op_failed op=%s kind=%s product=%s err=%q",
				op,
				opErr.Kind,
				b.product.Code,
				opErr.Err.Error(),
			)
		}
		metrics.ObserveOperation(op, string(b.product.Code), outcome, started)
	}()
	return fn()
}

func (b *Broker) call(ctx context.Context, ep bitflyer.Endpoint, params bitflyer.Params) (any, error) {
	return b.transport.Call(ctx, ep, params)
}

func (b *Broker) productParams() bitflyer.Params {
	return bitflyer.Params{"product_code": string(b.product.Code)}
}

// record appends one audit entry. Sink failures are logged and never
// change the outcome of the operation being audited.
func (b *Broker) record(entry audit.Entry) {
	entry.Time = b.now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("level=ERROR event=audit_append_panic event_kind=%s reason=%q", entry.Event, fmt.Sprint(r))
		}
	}()
	metrics.AuditEntries.WithLabelValues(string(entry.Event), boolLabel(entry.Success)).Inc()
	if err := b.audit.Append(entry); err != nil {
		log.Printf(
			"level=WARN event=audit_append_failed event_kind=%s order_id=%q reason=%q",
			entry.Event,
			entry.OrderID,
			err.Error(),
		)
	}
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func null(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}
