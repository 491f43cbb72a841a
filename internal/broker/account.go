package broker

import (
	"context"

	"bitflyer-broker/internal/exchange/bitflyer"
)

// GetAssets returns one AssetInfo per currency. Margin products report
// collateral accounts instead of spot balances.
func (b *Broker) GetAssets(ctx context.Context) (map[string]AssetInfo, error) {
	var assets map[string]AssetInfo
	err := b.run("get_assets", func() error {
		ep, build := bitflyer.GetBalance, NewAssetInfo
		if b.product.Margin {
			ep, build = bitflyer.GetCollateralAccounts, NewCollateralAssetInfo
		}
		raw, err := b.call(ctx, ep, nil)
		if err != nil {
			return err
		}
		rows, err := asList(raw)
		if err != nil {
			return err
		}
		assets = make(map[string]AssetInfo, len(rows))
		for _, row := range rows {
			info, err := build(row)
			if err != nil {
				return err
			}
			assets[info.Name] = info
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// OrderCheckDetail looks up a child order by acceptance id. An order the
// exchange does not know yields DefaultOrderInfo and a nil error.
func (b *Broker) OrderCheckDetail(ctx context.Context, orderID string) (OrderInfo, error) {
	var order OrderInfo
	err := b.run("order_check_detail", func() error {
		if orderID == "" {
			return validationf("order id required")
		}
		params := b.productParams()
		params["child_order_acceptance_id"] = orderID
		raw, err := b.call(ctx, bitflyer.GetChildOrders, params)
		if err != nil {
			return err
		}
		rows, err := asList(raw)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			order = DefaultOrderInfo()
			return nil
		}
		order, err = NewOrderInfo(rows[0])
		return err
	})
	if err != nil {
		return OrderInfo{}, err
	}
	return order, nil
}

// GetMarginTrading returns the collateral snapshot of a margin product.
func (b *Broker) GetMarginTrading(ctx context.Context) (MarginTradingInfo, error) {
	var info MarginTradingInfo
	err := b.run("get_margin_trading", func() error {
		if !b.product.Margin {
			return validationf("product %s has no margin account", b.product.Code)
		}
		raw, err := b.call(ctx, bitflyer.GetCollateral, nil)
		if err != nil {
			return err
		}
		info, err = NewMarginTradingInfo(raw)
		return err
	})
	if err != nil {
		return MarginTradingInfo{}, err
	}
	return info, nil
}

// GetPositions rebuilds the open position list on every call.
func (b *Broker) GetPositions(ctx context.Context) (PositionSummary, error) {
	var summary PositionSummary
	err := b.run("get_positions", func() error {
		if !b.product.Margin {
			return validationf("product %s has no positions", b.product.Code)
		}
		raw, err := b.call(ctx, bitflyer.GetPositions, b.productParams())
		if err != nil {
			return err
		}
		rows, err := asList(raw)
		if err != nil {
			return err
		}
		positions := make([]PositionInfo, 0, len(rows))
		for _, row := range rows {
			p, err := NewPositionInfo(row)
			if err != nil {
				return err
			}
			positions = append(positions, p)
		}
		summary, err = summarizePositions(positions)
		return err
	})
	if err != nil {
		return PositionSummary{}, err
	}
	return summary, nil
}
