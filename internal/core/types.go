package core

type ProductCode string

type Asset string

type HealthStatus string

type StateStatus string

type Side string

type OrderType string

type ConditionType string

type OrderState string

type EventKind string

const (
	BTCJPY   ProductCode = "BTC_JPY"
	FXBTCJPY ProductCode = "FX_BTC_JPY"
	ETHBTC   ProductCode = "ETH_BTC"
	BCHBTC   ProductCode = "BCH_BTC"
	ETHJPY   ProductCode = "ETH_JPY"
)

const (
	JPY  Asset = "JPY"
	BTC  Asset = "BTC"
	BCH  Asset = "BCH"
	ETH  Asset = "ETH"
	ETC  Asset = "ETC"
	LTC  Asset = "LTC"
	MONA Asset = "MONA"
	LSK  Asset = "LSK"
)

const (
	HealthNormal    HealthStatus = "NORMAL"
	HealthBusy      HealthStatus = "BUSY"
	HealthVeryBusy  HealthStatus = "VERY BUSY"
	HealthSuperBusy HealthStatus = "SUPER BUSY"
	HealthNoOrder   HealthStatus = "NO ORDER"
	HealthStop      HealthStatus = "STOP"
)

const (
	StateRunning      StateStatus = "RUNNING"
	StateClosed       StateStatus = "CLOSED"
	StateStarting     StateStatus = "STARTING"
	StatePreopen      StateStatus = "PREOPEN"
	StateCircuitBreak StateStatus = "CIRCUIT BREAK"
	StateAwaitingSQ   StateStatus = "AWAITING SQ"
	StateMatured      StateStatus = "MATURED"
)

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Child order types and parent (special) order methods share one vocabulary on the wire.
const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
	Simple OrderType = "SIMPLE"
	IFD    OrderType = "IFD"
	OCO    OrderType = "OCO"
	IFDOCO OrderType = "IFDOCO"
)

const (
	ConditionLimit     ConditionType = "LIMIT"
	ConditionMarket    ConditionType = "MARKET"
	ConditionStop      ConditionType = "STOP"
	ConditionStopLimit ConditionType = "STOP_LIMIT"
	ConditionTrail     ConditionType = "TRAIL"
)

const (
	OrderUnknown   OrderState = "UNKNOWN"
	OrderActive    OrderState = "ACTIVE"
	OrderCompleted OrderState = "COMPLETED"
	OrderCanceled  OrderState = "CANCELED"
	OrderExpired   OrderState = "EXPIRED"
	OrderRejected  OrderState = "REJECTED"
)

const (
	EventOrderBuyMarket     EventKind = "ORDER_BUY_MARKET"
	EventOrderBuyLimit      EventKind = "ORDER_BUY_LIMIT"
	EventOrderSellMarket    EventKind = "ORDER_SELL_MARKET"
	EventOrderSellLimit     EventKind = "ORDER_SELL_LIMIT"
	EventOrderCancel        EventKind = "ORDER_CANCEL"
	EventOrderAllCancel     EventKind = "ORDER_ALL_CANCEL"
	EventOCOBuyLimitStop    EventKind = "OCO_BUY_LIMIT_STOP"
	EventOCOSellLimitStop   EventKind = "OCO_SELL_LIMIT_STOP"
	EventSpecialOrderCancel EventKind = "SPECIAL_ORDER_CANCEL"
)

// ParseOrderState maps a wire child_order_state onto the closed OrderState set.
func ParseOrderState(v string) OrderState {
	switch s := OrderState(v); s {
	case OrderActive, OrderCompleted, OrderCanceled, OrderExpired, OrderRejected:
		return s
	default:
		return OrderUnknown
	}
}
