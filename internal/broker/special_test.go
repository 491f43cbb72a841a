package broker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitflyer-broker/internal/core"
	"bitflyer-broker/internal/exchange/bitflyer"
)

func TestParentAIDToOID(t *testing.T) {
	tr := newFakeTransport().respond(bitflyer.GetParentOrder, `{
		"id": 4242,
		"parent_order_id": "JCP20150825-046876-036161",
		"parent_order_acceptance_id": "JRF20150925-060559-396699"
	}`)
	b, sink := newTestBroker(t, Spot(), tr)

	oid, err := b.ParentAIDToOID(context.Background(), "JRF20150925-060559-396699")
	require.NoError(t, err)
	assert.Equal(t, "JCP20150825-046876-036161", oid)
	assert.Equal(t, "JRF20150925-060559-396699", tr.Calls()[0].Params["parent_order_acceptance_id"])
	assert.Empty(t, sink.Entries())
}

func TestSOCheckDetails(t *testing.T) {
	second := `{"product_code":"BTC_JPY","side":"SELL","child_order_type":"STOP","price":null,"average_price":0,"size":0.1,"child_order_state":"ACTIVE","expire_date":"2015-07-14T07:25:52","child_order_date":"2015-07-07T08:45:53","child_order_acceptance_id":"JRF-STOP","outstanding_size":0.1,"cancel_size":0,"executed_size":0,"total_commission":0}`
	tr := newFakeTransport().respond(bitflyer.GetChildOrders, "["+childOrderRow+","+second+"]")
	b, _ := newTestBroker(t, Spot(), tr)

	orders, err := b.SOCheckDetails(context.Background(), "JCP-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "JRF20150707-084552-031927", orders[0].OrderID)
	assert.Equal(t, "JRF-STOP", orders[1].OrderID)
	assert.Equal(t, core.OrderActive, orders[1].State)
	assert.False(t, orders[1].Price.Valid)

	params := tr.Calls()[0].Params
	assert.Equal(t, "JCP-1", params["parent_order_id"])
	assert.Equal(t, "BTC_JPY", params["product_code"])
}

func TestSOCheckDetailsEmpty(t *testing.T) {
	tr := newFakeTransport().respond(bitflyer.GetChildOrders, `[]`)
	b, _ := newTestBroker(t, Spot(), tr)

	orders, err := b.SOCheckDetails(context.Background(), "JCP-1")
	require.NoError(t, err)
	assert.Equal(t, []OrderInfo{DefaultOrderInfo()}, orders)
}

func TestOCOLimitStop(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		place func(b *Broker) (string, error)
		event core.EventKind
		side  core.Side
	}{
		{"buy", func(b *Broker) (string, error) {
			return b.SOOCOBuyLimitStop(ctx, dec("3000000"), dec("3200000"), dec("0.02"))
		}, core.EventOCOBuyLimitStop, core.Buy},
		{"sell", func(b *Broker) (string, error) {
			return b.SOOCOSellLimitStop(ctx, dec("3000000"), dec("3200000"), dec("0.02"))
		}, core.EventOCOSellLimitStop, core.Sell},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := newFakeTransport().respond(bitflyer.SendParentOrder, `{"parent_order_acceptance_id":"JRF20150707-050237-639234"}`)
			b, sink := newTestBroker(t, Spot(), tr)

			id, err := tc.place(b)
			require.NoError(t, err)
			assert.Equal(t, "JRF20150707-050237-639234", id)

			params := tr.Calls()[0].Params
			assert.Equal(t, "OCO", params["order_method"])
			legs, ok := params["parameters"].([]bitflyer.Params)
			require.True(t, ok)
			require.Len(t, legs, 2)
			assert.Equal(t, "LIMIT", legs[0]["condition_type"])
			assert.Equal(t, json.Number("3000000"), legs[0]["price"])
			assert.Equal(t, "STOP", legs[1]["condition_type"])
			assert.Equal(t, json.Number("3200000"), legs[1]["trigger_price"])
			for _, leg := range legs {
				assert.Equal(t, string(tc.side), leg["side"])
				assert.Equal(t, json.Number("0.02"), leg["size"])
				assert.Equal(t, "BTC_JPY", leg["product_code"])
			}

			entries := sink.Entries()
			require.Len(t, entries, 2)
			assert.Equal(t, "OCO1:LIMIT", entries[0].Facility)
			assert.True(t, entries[0].Price.Decimal.Equal(dec("3000000")))
			assert.Equal(t, "OCO2:STOP", entries[1].Facility)
			assert.True(t, entries[1].Price.Decimal.Equal(dec("3200000")))
			for _, e := range entries {
				assert.Equal(t, tc.event, e.Event)
				assert.Equal(t, id, e.OrderID)
				assert.True(t, e.Success)
			}
		})
	}
}

func TestOCOFailureAuditsBothLegs(t *testing.T) {
	tr := newFakeTransport().respond(bitflyer.SendParentOrder, `{}`)
	b, sink := newTestBroker(t, Spot(), tr)

	id, err := b.SOOCOSellLimitStop(context.Background(), dec("1"), dec("2"), dec("0.1"))
	require.Error(t, err)
	assert.Empty(t, id)
	entries := sink.Entries()
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Success)
	assert.False(t, entries[1].Success)
}

func TestSOCancel(t *testing.T) {
	cases := []struct {
		name     string
		ref      SpecialOrderRef
		key      string
		id       string
		facility string
	}{
		{"acceptance id wins", SpecialOrderRef{AcceptanceID: "JRF-P", OrderID: "JCP-P"}, "parent_order_acceptance_id", "JRF-P", "parent_order_acceptance_id"},
		{"order id", SpecialOrderRef{OrderID: "JCP-P"}, "parent_order_id", "JCP-P", "parent_order_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := newFakeTransport()
			b, sink := newTestBroker(t, Spot(), tr)

			require.NoError(t, b.SOCancel(context.Background(), tc.ref))
			calls := tr.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, bitflyer.CancelParentOrder, calls[0].Endpoint)
			assert.Equal(t, tc.id, calls[0].Params[tc.key])
			assert.Len(t, calls[0].Params, 2)

			entries := sink.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, core.EventSpecialOrderCancel, entries[0].Event)
			assert.Equal(t, tc.id, entries[0].OrderID)
			assert.Equal(t, tc.facility, entries[0].Facility)
			assert.True(t, entries[0].Success)
		})
	}
}

func TestSOCancelWithoutIdentifiers(t *testing.T) {
	tr := newFakeTransport()
	b, sink := newTestBroker(t, Spot(), tr)

	err := b.SOCancel(context.Background(), SpecialOrderRef{})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Empty(t, tr.Calls())

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Empty(t, entries[0].OrderID)
	assert.Empty(t, entries[0].Facility)
}
