package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-broker/internal/alert"
	"bitflyer-broker/internal/audit"
	"bitflyer-broker/internal/broker"
	"bitflyer-broker/internal/config"
)

const usage = `usage: bfbroker [-config path] <command> [args]

commands:
  assets                          balances (collateral for fx)
  order <acceptance-id>           child order detail
  buy-limit|sell-limit <price> <amount>
  buy-market|sell-market <amount>
  cancel <acceptance-id>
  cancel-all
  parent-id <parent-acceptance-id>
  so-details <parent-order-id>
  oco-buy|oco-sell <limit> <stop> <amount>
  so-cancel -aid <acceptance-id> | -oid <parent-order-id>
  margin | positions              fx only
  markets | ticker | board | board-state | health | executions | chats`

var errUsage = errors.New(usage)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	alerts := buildAlertManager(cfg)
	b, err := buildBroker(cfg, alerts)
	if err != nil {
		fatal(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := run(ctx, b, flag.Args(), os.Stdout)
	stop()
	if alerts != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := alerts.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "close alert manager failed: %v\n", err)
		}
		cancel()
	}
	if runErr != nil {
		fatal(runErr.Error())
	}
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
	return alert.NewManager("bfbroker", string(cfg.ProductCode()), notifier, alert.ManagerOptions{})
}

func buildBroker(cfg config.Config, alerts *alert.Manager) (*broker.Broker, error) {
	opts := broker.OptionsFromConfig(cfg)
	var sink audit.Sink = audit.Discard
	if cfg.Audit.Enabled {
		fileSink, err := audit.NewFileSink(cfg.Audit.Dir, broker.Name, cfg.ProductCode(), time.Now())
		if err != nil {
			return nil, err
		}
		sink = fileSink
	}
	if alerts != nil {
		sink = alert.NewAuditSink(sink, alerts)
	}
	opts.Audit = sink
	return broker.New(opts)
}

// run executes one command and prints its JSON result to out.
func run(ctx context.Context, b *broker.Broker, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	var (
		result any
		err    error
	)
	switch cmd {
	case "assets":
		if err = want(rest, 0); err == nil {
			result, err = b.GetAssets(ctx)
		}
	case "order":
		if err = want(rest, 1); err == nil {
			result, err = b.OrderCheckDetail(ctx, rest[0])
		}
	case "buy-limit", "sell-limit":
		var nums []decimal.Decimal
		if nums, err = decimals(rest, 2); err == nil {
			place := b.OrderBuyLimit
			if cmd == "sell-limit" {
				place = b.OrderSellLimit
			}
			result, err = acceptance(place(ctx, nums[0], nums[1]))
		}
	case "buy-market", "sell-market":
		var nums []decimal.Decimal
		if nums, err = decimals(rest, 1); err == nil {
			place := b.OrderBuyMarket
			if cmd == "sell-market" {
				place = b.OrderSellMarket
			}
			result, err = acceptance(place(ctx, nums[0]))
		}
	case "cancel":
		if err = want(rest, 1); err == nil {
			result, err = ok(b.OrderCancel(ctx, rest[0]))
		}
	case "cancel-all":
		if err = want(rest, 0); err == nil {
			result, err = ok(b.OrderAllCancel(ctx))
		}
	case "parent-id":
		if err = want(rest, 1); err == nil {
			var oid string
			oid, err = b.ParentAIDToOID(ctx, rest[0])
			result = map[string]string{"parent_order_id": oid}
		}
	case "so-details":
		if err = want(rest, 1); err == nil {
			result, err = b.SOCheckDetails(ctx, rest[0])
		}
	case "oco-buy", "oco-sell":
		var nums []decimal.Decimal
		if nums, err = decimals(rest, 3); err == nil {
			place := b.SOOCOBuyLimitStop
			if cmd == "oco-sell" {
				place = b.SOOCOSellLimitStop
			}
			result, err = acceptance(place(ctx, nums[0], nums[1], nums[2]))
		}
	case "so-cancel":
		var ref broker.SpecialOrderRef
		if ref, err = parseSpecialOrderRef(rest); err == nil {
			result, err = ok(b.SOCancel(ctx, ref))
		}
	case "margin":
		if err = want(rest, 0); err == nil {
			result, err = b.GetMarginTrading(ctx)
		}
	case "positions":
		if err = want(rest, 0); err == nil {
			result, err = b.GetPositions(ctx)
		}
	case "markets":
		result, err = raw(ctx, rest, b.GetMarkets)
	case "ticker":
		result, err = raw(ctx, rest, b.GetTicker)
	case "board":
		result, err = raw(ctx, rest, b.GetDepthData)
	case "executions":
		result, err = raw(ctx, rest, b.GetExecutions)
	case "chats":
		result, err = raw(ctx, rest, b.GetChats)
	case "board-state":
		if err = want(rest, 0); err == nil {
			health, state, stateErr := b.GetDepthStatus(ctx)
			result, err = map[string]string{"health": string(health), "state": string(state)}, stateErr
		}
	case "health":
		if err = want(rest, 0); err == nil {
			health, healthErr := b.GetBrokerStatus(ctx)
			result, err = map[string]string{"status": string(health)}, healthErr
		}
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func want(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d\n%s", n, len(args), usage)
	}
	return nil
}

func decimals(args []string, n int) ([]decimal.Decimal, error) {
	if err := want(args, n); err != nil {
		return nil, err
	}
	out := make([]decimal.Decimal, n)
	for i, a := range args {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal %q: %w", a, err)
		}
		out[i] = d
	}
	return out, nil
}

func parseSpecialOrderRef(args []string) (broker.SpecialOrderRef, error) {
	var ref broker.SpecialOrderRef
	fs := flag.NewFlagSet("so-cancel", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&ref.AcceptanceID, "aid", "", "parent order acceptance id")
	fs.StringVar(&ref.OrderID, "oid", "", "parent order id")
	if err := fs.Parse(args); err != nil {
		return broker.SpecialOrderRef{}, fmt.Errorf("so-cancel: %w", err)
	}
	if fs.NArg() != 0 {
		return broker.SpecialOrderRef{}, fmt.Errorf("so-cancel: unexpected arguments %v", fs.Args())
	}
	return ref, nil
}

func acceptance(id string, err error) (any, error) {
	return map[string]string{"acceptance_id": id}, err
}

func ok(err error) (any, error) {
	return map[string]bool{"ok": err == nil}, err
}

func raw(ctx context.Context, args []string, read func(context.Context) (any, error)) (any, error) {
	if err := want(args, 0); err != nil {
		return nil, err
	}
	return read(ctx)
}
