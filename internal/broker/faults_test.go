package broker

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitflyer-broker/internal/core"
	"bitflyer-broker/internal/exchange/bitflyer"
)

func TestTransportFaultInEveryOperation(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		product Product
		ep      bitflyer.Endpoint
		call    func(b *Broker) (any, error)
		want    any
		audited int
	}{
		{"get_assets", Spot(), bitflyer.GetBalance, func(b *Broker) (any, error) { return b.GetAssets(ctx) }, map[string]AssetInfo(nil), 0},
		{"get_assets fx", FX(), bitflyer.GetCollateralAccounts, func(b *Broker) (any, error) { return b.GetAssets(ctx) }, map[string]AssetInfo(nil), 0},
		{"order_check_detail", Spot(), bitflyer.GetChildOrders, func(b *Broker) (any, error) { return b.OrderCheckDetail(ctx, "JRF1") }, OrderInfo{}, 0},
		{"get_markets", Spot(), bitflyer.GetMarkets, func(b *Broker) (any, error) { return b.GetMarkets(ctx) }, nil, 0},
		{"get_ticker", Spot(), bitflyer.GetTicker, func(b *Broker) (any, error) { return b.GetTicker(ctx) }, nil, 0},
		{"get_depth_data", Spot(), bitflyer.GetBoard, func(b *Broker) (any, error) { return b.GetDepthData(ctx) }, nil, 0},
		{"get_executions", Spot(), bitflyer.GetExecutions, func(b *Broker) (any, error) { return b.GetExecutions(ctx) }, nil, 0},
		{"get_chats", Spot(), bitflyer.GetChats, func(b *Broker) (any, error) { return b.GetChats(ctx) }, nil, 0},
		{"get_depth_status", Spot(), bitflyer.GetBoardState, func(b *Broker) (any, error) {
			health, state, err := b.GetDepthStatus(ctx)
			return [2]string{string(health), string(state)}, err
		}, [2]string{string(core.HealthStop), string(core.StateClosed)}, 0},
		{"get_broker_status", Spot(), bitflyer.GetHealth, func(b *Broker) (any, error) { return b.GetBrokerStatus(ctx) }, core.HealthStop, 0},
		{"order_buy_limit", Spot(), bitflyer.SendChildOrder, func(b *Broker) (any, error) { return b.OrderBuyLimit(ctx, dec("100"), dec("0.01")) }, "", 1},
		{"order_sell_limit", Spot(), bitflyer.SendChildOrder, func(b *Broker) (any, error) { return b.OrderSellLimit(ctx, dec("100"), dec("0.01")) }, "", 1},
		{"order_buy_market", Spot(), bitflyer.SendChildOrder, func(b *Broker) (any, error) { return b.OrderBuyMarket(ctx, dec("0.01")) }, "", 1},
		{"order_sell_market", Spot(), bitflyer.SendChildOrder, func(b *Broker) (any, error) { return b.OrderSellMarket(ctx, dec("0.01")) }, "", 1},
		{"order_cancel", Spot(), bitflyer.CancelChildOrder, func(b *Broker) (any, error) { return nil, b.OrderCancel(ctx, "JRF1") }, nil, 1},
		{"order_all_cancel", Spot(), bitflyer.CancelAllChildOrders, func(b *Broker) (any, error) { return nil, b.OrderAllCancel(ctx) }, nil, 1},
		{"parent_aid_to_oid", Spot(), bitflyer.GetParentOrder, func(b *Broker) (any, error) { return b.ParentAIDToOID(ctx, "JRF-P") }, "", 0},
		{"so_check_details", Spot(), bitflyer.GetChildOrders, func(b *Broker) (any, error) { return b.SOCheckDetails(ctx, "JCP-P") }, []OrderInfo(nil), 0},
		{"so_oco_buy_limit_stop", Spot(), bitflyer.SendParentOrder, func(b *Broker) (any, error) {
			return b.SOOCOBuyLimitStop(ctx, dec("100"), dec("90"), dec("0.01"))
		}, "", 2},
		{"so_oco_sell_limit_stop", Spot(), bitflyer.SendParentOrder, func(b *Broker) (any, error) {
			return b.SOOCOSellLimitStop(ctx, dec("100"), dec("110"), dec("0.01"))
		}, "", 2},
		{"so_cancel", Spot(), bitflyer.CancelParentOrder, func(b *Broker) (any, error) {
			return nil, b.SOCancel(ctx, SpecialOrderRef{AcceptanceID: "JRF-P"})
		}, nil, 1},
		{"get_margin_trading", FX(), bitflyer.GetCollateral, func(b *Broker) (any, error) { return b.GetMarginTrading(ctx) }, MarginTradingInfo{}, 0},
		{"get_positions", FX(), bitflyer.GetPositions, func(b *Broker) (any, error) { return b.GetPositions(ctx) }, PositionSummary{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := newFakeTransport().fail(tc.ep, fmt.Errorf("%w: connection reset", core.ErrTransport))
			b, sink := newTestBroker(t, tc.product, tr)

			got, err := tc.call(b)
			require.Error(t, err)
			assert.Equal(t, KindTransport, KindOf(err))
			assert.ErrorIs(t, err, core.ErrTransport)
			assert.Equal(t, tc.want, got)

			calls := tr.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tc.ep, calls[0].Endpoint)

			entries := sink.Entries()
			require.Len(t, entries, tc.audited)
			for _, e := range entries {
				assert.False(t, e.Success)
				if tc.want == "" {
					assert.Empty(t, e.OrderID)
				}
			}
		})
	}
}
