package broker

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"bitflyer-broker/internal/audit"
	"bitflyer-broker/internal/core"
	"bitflyer-broker/internal/exchange/bitflyer"
)

func (b *Broker) OrderBuyLimit(ctx context.Context, price, amount decimal.Decimal) (string, error) {
	return b.childOrder(ctx, "order_buy_limit", core.EventOrderBuyLimit, core.Buy, core.Limit, null(price), amount)
}

func (b *Broker) OrderBuyMarket(ctx context.Context, amount decimal.Decimal) (string, error) {
	return b.childOrder(ctx, "order_buy_market", core.EventOrderBuyMarket, core.Buy, core.Market, decimal.NullDecimal{}, amount)
}

func (b *Broker) OrderSellLimit(ctx context.Context, price, amount decimal.Decimal) (string, error) {
	return b.childOrder(ctx, "order_sell_limit", core.EventOrderSellLimit, core.Sell, core.Limit, null(price), amount)
}

func (b *Broker) OrderSellMarket(ctx context.Context, amount decimal.Decimal) (string, error) {
	return b.childOrder(ctx, "order_sell_market", core.EventOrderSellMarket, core.Sell, core.Market, decimal.NullDecimal{}, amount)
}

// childOrder sends one child order and writes exactly one audit entry,
// whatever the outcome. price is null for market orders.
func (b *Broker) childOrder(ctx context.Context, op string, event core.EventKind, side core.Side, typ core.OrderType, price decimal.NullDecimal, amount decimal.Decimal) (string, error) {
	var orderID string
	err := b.run(op, func() error {
		if price.Valid {
			if err := requirePositive("price", price.Decimal); err != nil {
				return err
			}
		}
		if err := b.checkAmount(amount); err != nil {
			return err
		}
		params := b.productParams()
		params["child_order_type"] = string(typ)
		params["side"] = string(side)
		params["size"] = number(amount)
		if price.Valid {
			params["price"] = number(price.Decimal)
		}
		raw, err := b.call(ctx, bitflyer.SendChildOrder, params)
		if err != nil {
			return err
		}
		w, err := asObject(raw)
		if err != nil {
			return err
		}
		orderID, err = w.requiredStr("child_order_acceptance_id")
		return err
	})
	if err != nil {
		orderID = ""
	}
	b.record(audit.Entry{
		Event:   event,
		OrderID: orderID,
		Price:   price,
		Amount:  null(amount),
		Success: err == nil,
	})
	return orderID, err
}

// OrderCancel cancels one child order by acceptance id.
func (b *Broker) OrderCancel(ctx context.Context, orderID string) error {
	err := b.run("order_cancel", func() error {
		if orderID == "" {
			return validationf("order id required")
		}
		params := b.productParams()
		params["child_order_acceptance_id"] = orderID
		_, err := b.call(ctx, bitflyer.CancelChildOrder, params)
		return err
	})
	b.record(audit.Entry{Event: core.EventOrderCancel, OrderID: orderID, Success: err == nil})
	return err
}

// OrderAllCancel cancels every child order of the product.
func (b *Broker) OrderAllCancel(ctx context.Context) error {
	err := b.run("order_all_cancel", func() error {
		_, err := b.call(ctx, bitflyer.CancelAllChildOrders, b.productParams())
		return err
	})
	b.record(audit.Entry{Event: core.EventOrderAllCancel, Success: err == nil})
	return err
}

func (b *Broker) checkAmount(amount decimal.Decimal) error {
	if err := requirePositive("amount", amount); err != nil {
		return err
	}
	if b.maxAmount.IsPositive() && amount.GreaterThan(b.maxAmount) {
		return validationf("amount %s exceeds max order amount %s", amount, b.maxAmount)
	}
	return nil
}

func requirePositive(name string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return validationf("%s must be > 0, got %s", name, v)
	}
	return nil
}

// number renders a decimal as a JSON number without going through float64.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
