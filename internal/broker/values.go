package broker

import (
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-broker/internal/core"
)

// AssetInfo is one currency balance line.
type AssetInfo struct {
	Name         string
	OnhandAmount decimal.NullDecimal
	FreeAmount   decimal.NullDecimal
}

// LockedAmount is OnhandAmount - FreeAmount, null when either is unknown.
func (a AssetInfo) LockedAmount() decimal.NullDecimal {
	if !a.OnhandAmount.Valid || !a.FreeAmount.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(a.OnhandAmount.Decimal.Sub(a.FreeAmount.Decimal))
}

// NewAssetInfo builds a spot balance from a getbalance row.
func NewAssetInfo(raw any) (AssetInfo, error) {
	w, err := asObject(raw)
	if err != nil {
		return AssetInfo{}, err
	}
	name, err := w.str("currency_code")
	if err != nil {
		return AssetInfo{}, err
	}
	onhand, err := w.decimal("amount")
	if err != nil {
		return AssetInfo{}, err
	}
	free, err := w.decimal("available")
	if err != nil {
		return AssetInfo{}, err
	}
	return AssetInfo{Name: name, OnhandAmount: onhand, FreeAmount: free}, nil
}

// NewCollateralAssetInfo builds a margin collateral balance. Collateral is
// not split into free and locked here, so both amounts are equal.
func NewCollateralAssetInfo(raw any) (AssetInfo, error) {
	w, err := asObject(raw)
	if err != nil {
		return AssetInfo{}, err
	}
	name, err := w.str("currency_code")
	if err != nil {
		return AssetInfo{}, err
	}
	amount, err := w.decimal("amount")
	if err != nil {
		return AssetInfo{}, err
	}
	return AssetInfo{Name: name, OnhandAmount: amount, FreeAmount: amount}, nil
}

// OrderInfo is a snapshot of one child order as reported by the exchange.
type OrderInfo struct {
	OrderID            string
	Pair               core.ProductCode
	Side               core.Side
	Type               core.OrderType
	State              core.OrderState
	Price              decimal.NullDecimal
	Amount             decimal.NullDecimal
	ExecutedAvePrice   decimal.NullDecimal
	ExecutedAmount     decimal.NullDecimal
	ExecutedCommission decimal.NullDecimal
	OutstandingAmount  decimal.NullDecimal
	CanceledAmount     decimal.NullDecimal
	OrderDate          *time.Time
	ExpireDate         *time.Time
}

// DefaultOrderInfo is returned when the exchange knows no matching order.
func DefaultOrderInfo() OrderInfo {
	return OrderInfo{State: core.OrderUnknown}
}

// ExecutedActualAmount is the executed size net of commission.
func (o OrderInfo) ExecutedActualAmount() decimal.NullDecimal {
	if !o.ExecutedAmount.Valid || !o.ExecutedCommission.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(o.ExecutedAmount.Decimal.Sub(o.ExecutedCommission.Decimal))
}

func NewOrderInfo(raw any) (OrderInfo, error) {
	w, err := asObject(raw)
	if err != nil {
		return OrderInfo{}, err
	}
	var o OrderInfo
	var state, pair, side, typ string
	strs := []struct {
		key string
		dst *string
	}{
		{"child_order_acceptance_id", &o.OrderID},
		{"product_code", &pair},
		{"side", &side},
		{"child_order_type", &typ},
		{"child_order_state", &state},
	}
	for _, f := range strs {
		if *f.dst, err = w.str(f.key); err != nil {
			return OrderInfo{}, err
		}
	}
	o.Pair = core.ProductCode(pair)
	o.Side = core.Side(side)
	o.Type = core.OrderType(typ)
	o.State = core.ParseOrderState(state)

	nums := []struct {
		key string
		dst *decimal.NullDecimal
	}{
		{"price", &o.Price},
		{"size", &o.Amount},
		{"average_price", &o.ExecutedAvePrice},
		{"executed_size", &o.ExecutedAmount},
		{"total_commission", &o.ExecutedCommission},
		{"outstanding_size", &o.OutstandingAmount},
		{"cancel_size", &o.CanceledAmount},
	}
	for _, f := range nums {
		if *f.dst, err = w.decimal(f.key); err != nil {
			return OrderInfo{}, err
		}
	}
	if o.ExpireDate, err = w.timestamp("expire_date"); err != nil {
		return OrderInfo{}, err
	}
	if o.OrderDate, err = w.timestamp("child_order_date"); err != nil {
		return OrderInfo{}, err
	}
	return o, nil
}

// PositionInfo is one open margin position.
type PositionInfo struct {
	Pair           core.ProductCode
	Side           core.Side
	Price          decimal.NullDecimal
	Amount         decimal.NullDecimal
	Commission     decimal.NullDecimal
	Swap           decimal.NullDecimal
	RequiredMargin decimal.NullDecimal
	OpenDate       *time.Time
	Leverage       decimal.NullDecimal
	ProfitLoss     decimal.NullDecimal
	SFD            decimal.NullDecimal
}

func NewPositionInfo(raw any) (PositionInfo, error) {
	w, err := asObject(raw)
	if err != nil {
		return PositionInfo{}, err
	}
	var p PositionInfo
	pair, err := w.str("product_code")
	if err != nil {
		return PositionInfo{}, err
	}
	side, err := w.str("side")
	if err != nil {
		return PositionInfo{}, err
	}
	p.Pair = core.ProductCode(pair)
	p.Side = core.Side(side)
	nums := []struct {
		key string
		dst *decimal.NullDecimal
	}{
		{"price", &p.Price},
		{"size", &p.Amount},
		{"commission", &p.Commission},
		{"swap_point_accumulate", &p.Swap},
		{"require_collateral", &p.RequiredMargin},
		{"leverage", &p.Leverage},
		{"pnl", &p.ProfitLoss},
		{"sfd", &p.SFD},
	}
	for _, f := range nums {
		if *f.dst, err = w.decimal(f.key); err != nil {
			return PositionInfo{}, err
		}
	}
	if p.OpenDate, err = w.timestamp("open_date"); err != nil {
		return PositionInfo{}, err
	}
	return p, nil
}

// MarginTradingInfo is the account-level collateral snapshot (JPY).
type MarginTradingInfo struct {
	MarginDeposit  decimal.NullDecimal
	RequiredMargin decimal.NullDecimal
	MarginRate     decimal.NullDecimal
	ProfitLoss     decimal.NullDecimal
}

func NewMarginTradingInfo(raw any) (MarginTradingInfo, error) {
	w, err := asObject(raw)
	if err != nil {
		return MarginTradingInfo{}, err
	}
	var m MarginTradingInfo
	nums := []struct {
		key string
		dst *decimal.NullDecimal
	}{
		{"collateral", &m.MarginDeposit},
		{"require_collateral", &m.RequiredMargin},
		{"keep_rate", &m.MarginRate},
		{"open_position_pnl", &m.ProfitLoss},
	}
	for _, f := range nums {
		if *f.dst, err = w.decimal(f.key); err != nil {
			return MarginTradingInfo{}, err
		}
	}
	return m, nil
}

// PositionSummary is the open position list with its size-weighted average
// price and total size. Both are zero when there are no positions.
type PositionSummary struct {
	Positions    []PositionInfo
	AveragePrice decimal.Decimal
	TotalAmount  decimal.Decimal
}

func summarizePositions(positions []PositionInfo) (PositionSummary, error) {
	total := decimal.Zero
	weighted := decimal.Zero
	for i, p := range positions {
		if !p.Price.Valid || !p.Amount.Valid {
			return PositionSummary{}, decodef("position %d has no price or size", i)
		}
		total = total.Add(p.Amount.Decimal)
		weighted = weighted.Add(p.Price.Decimal.Mul(p.Amount.Decimal))
	}
	avg := decimal.Zero
	if total.GreaterThan(decimal.Zero) {
		avg = weighted.Div(total)
	}
	return PositionSummary{Positions: positions, AveragePrice: avg, TotalAmount: total}, nil
}
