package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"bitflyer-broker/internal/audit"
	"bitflyer-broker/internal/core"
	"bitflyer-broker/internal/exchange/bitflyer"
)

const (
	facilityOCOLimit = "OCO1:LIMIT"
	facilityOCOStop  = "OCO2:STOP"

	refAcceptanceID = "parent_order_acceptance_id"
	refOrderID      = "parent_order_id"
)

// SpecialOrderRef identifies a parent order for cancellation. AcceptanceID
// takes precedence when both are set.
type SpecialOrderRef struct {
	AcceptanceID string
	OrderID      string
}

// ParentAIDToOID resolves a parent order acceptance id to the exchange's
// internal parent order id.
func (b *Broker) ParentAIDToOID(ctx context.Context, acceptanceID string) (string, error) {
	var orderID string
	err := b.run("parent_aid_to_oid", func() error {
		if acceptanceID == "" {
			return validationf("acceptance id required")
		}
		raw, err := b.call(ctx, bitflyer.GetParentOrder, bitflyer.Params{refAcceptanceID: acceptanceID})
		if err != nil {
			return err
		}
		w, err := asObject(raw)
		if err != nil {
			return err
		}
		orderID, err = w.requiredStr(refOrderID)
		return err
	})
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// SOCheckDetails lists the child orders of a parent order, in exchange
// order. With no children it returns a single DefaultOrderInfo.
func (b *Broker) SOCheckDetails(ctx context.Context, parentOrderID string) ([]OrderInfo, error) {
	var orders []OrderInfo
	err := b.run("so_check_details", func() error {
		if parentOrderID == "" {
			return validationf("parent order id required")
		}
		params := b.productParams()
		params[refOrderID] = parentOrderID
		raw, err := b.call(ctx, bitflyer.GetChildOrders, params)
		if err != nil {
			return err
		}
		rows, err := asList(raw)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			orders = []OrderInfo{DefaultOrderInfo()}
			return nil
		}
		orders = make([]OrderInfo, 0, len(rows))
		for _, row := range rows {
			o, err := NewOrderInfo(row)
			if err != nil {
				return err
			}
			orders = append(orders, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (b *Broker) SOOCOBuyLimitStop(ctx context.Context, limitPrice, stopPrice, amount decimal.Decimal) (string, error) {
	return b.ocoLimitStop(ctx, "so_oco_buy_limit_stop", core.EventOCOBuyLimitStop, core.Buy, limitPrice, stopPrice, amount)
}

func (b *Broker) SOOCOSellLimitStop(ctx context.Context, limitPrice, stopPrice, amount decimal.Decimal) (string, error) {
	return b.ocoLimitStop(ctx, "so_oco_sell_limit_stop", core.EventOCOSellLimitStop, core.Sell, limitPrice, stopPrice, amount)
}

// ocoLimitStop submits a LIMIT leg and a STOP leg of the same side and size
// as one OCO parent order. Both legs are audited with the shared outcome.
func (b *Broker) ocoLimitStop(ctx context.Context, op string, event core.EventKind, side core.Side, limitPrice, stopPrice, amount decimal.Decimal) (string, error) {
	var orderID string
	err := b.run(op, func() error {
		if err := requirePositive("limit price", limitPrice); err != nil {
			return err
		}
		if err := requirePositive("stop price", stopPrice); err != nil {
			return err
		}
		if err := b.checkAmount(amount); err != nil {
			return err
		}
		legs := []bitflyer.Params{
			b.limitLeg(side, limitPrice, amount),
			b.stopLeg(side, stopPrice, amount),
		}
		raw, err := b.call(ctx, bitflyer.SendParentOrder, bitflyer.Params{
			"order_method": string(core.OCO),
			"parameters":   legs,
		})
		if err != nil {
			return err
		}
		w, err := asObject(raw)
		if err != nil {
			return err
		}
		orderID, err = w.requiredStr(refAcceptanceID)
		return err
	})
	if err != nil {
		orderID = ""
	}
	success := err == nil
	b.record(audit.Entry{Event: event, OrderID: orderID, Price: null(limitPrice), Amount: null(amount), Success: success, Facility: facilityOCOLimit})
	b.record(audit.Entry{Event: event, OrderID: orderID, Price: null(stopPrice), Amount: null(amount), Success: success, Facility: facilityOCOStop})
	return orderID, err
}

func (b *Broker) limitLeg(side core.Side, price, size decimal.Decimal) bitflyer.Params {
	return bitflyer.Params{
		"product_code":   string(b.product.Code),
		"condition_type": string(core.ConditionLimit),
		"side":           string(side),
		"price":          number(price),
		"size":           number(size),
	}
}

func (b *Broker) stopLeg(side core.Side, trigger, size decimal.Decimal) bitflyer.Params {
	return bitflyer.Params{
		"product_code":   string(b.product.Code),
		"condition_type": string(core.ConditionStop),
		"side":           string(side),
		"trigger_price":  number(trigger),
		"size":           number(size),
	}
}

// SOCancel cancels a parent order. With neither identifier set it fails
// without calling the exchange but still writes its audit entry.
func (b *Broker) SOCancel(ctx context.Context, ref SpecialOrderRef) error {
	var id, facility string
	switch {
	case ref.AcceptanceID != "":
		id, facility = ref.AcceptanceID, refAcceptanceID
	case ref.OrderID != "":
		id, facility = ref.OrderID, refOrderID
	}
	err := b.run("so_cancel", func() error {
		if id == "" {
			return validationf("parent order acceptance id or parent order id required")
		}
		params := b.productParams()
		params[facility] = id
		_, err := b.call(ctx, bitflyer.CancelParentOrder, params)
		return err
	})
	b.record(audit.Entry{Event: core.EventSpecialOrderCancel, OrderID: id, Success: err == nil, Facility: facility})
	return err
}
