package broker

import (
	"context"

	"bitflyer-broker/internal/core"
	"bitflyer-broker/internal/exchange/bitflyer"
)

func (b *Broker) passThrough(ctx context.Context, op string, ep bitflyer.Endpoint, params bitflyer.Params) (any, error) {
	var out any
	err := b.run(op, func() error {
		raw, err := b.call(ctx, ep, params)
		if err != nil {
			return err
		}
		out = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Broker) GetMarkets(ctx context.Context) (any, error) {
	return b.passThrough(ctx, "get_markets", bitflyer.GetMarkets, nil)
}

// GetDepthData returns the order book as sent by the exchange.
func (b *Broker) GetDepthData(ctx context.Context) (any, error) {
	return b.passThrough(ctx, "get_depth_data", bitflyer.GetBoard, b.productParams())
}

func (b *Broker) GetTicker(ctx context.Context) (any, error) {
	return b.passThrough(ctx, "get_ticker", bitflyer.GetTicker, b.productParams())
}

func (b *Broker) GetExecutions(ctx context.Context) (any, error) {
	return b.passThrough(ctx, "get_executions", bitflyer.GetExecutions, b.productParams())
}

func (b *Broker) GetChats(ctx context.Context) (any, error) {
	return b.passThrough(ctx, "get_chats", bitflyer.GetChats, nil)
}

// GetDepthStatus returns the board health and state, or (STOP, CLOSED)
// with an error when they cannot be read.
func (b *Broker) GetDepthStatus(ctx context.Context) (core.HealthStatus, core.StateStatus, error) {
	health, state := core.HealthStop, core.StateClosed
	err := b.run("get_depth_status", func() error {
		raw, err := b.call(ctx, bitflyer.GetBoardState, b.productParams())
		if err != nil {
			return err
		}
		w, err := asObject(raw)
		if err != nil {
			return err
		}
		h, err := w.requiredStr("health")
		if err != nil {
			return err
		}
		s, err := w.requiredStr("state")
		if err != nil {
			return err
		}
		health, state = core.HealthStatus(h), core.StateStatus(s)
		return nil
	})
	if err != nil {
		return core.HealthStop, core.StateClosed, err
	}
	return health, state, nil
}

// GetBrokerStatus returns the exchange health, or STOP with an error.
func (b *Broker) GetBrokerStatus(ctx context.Context) (core.HealthStatus, error) {
	health := core.HealthStop
	err := b.run("get_broker_status", func() error {
		raw, err := b.call(ctx, bitflyer.GetHealth, b.productParams())
		if err != nil {
			return err
		}
		w, err := asObject(raw)
		if err != nil {
			return err
		}
		status, err := w.requiredStr("status")
		if err != nil {
			return err
		}
		health = core.HealthStatus(status)
		return nil
	})
	if err != nil {
		return core.HealthStop, err
	}
	return health, nil
}
