package broker

import (
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-broker/internal/core"
)

// wire is one decoded JSON object. Every accessor reports a missing key as
// a decode fault; a present null is accepted as "unknown".
type wire map[string]any

func asObject(v any) (wire, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, decodef("expected object, got %T", v)
	}
	return wire(m), nil
}

func asList(v any) ([]any, error) {
	l, ok := v.([]any)
	if !ok {
		return nil, decodef("expected array, got %T", v)
	}
	return l, nil
}

func (w wire) field(key string) (any, error) {
	v, ok := w[key]
	if !ok {
		return nil, decodef("missing key %q", key)
	}
	return v, nil
}

func (w wire) str(key string) (string, error) {
	v, err := w.field(key)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	default:
		return "", decodef("key %q: expected string, got %T", key, v)
	}
}

// requiredStr is str with an empty value also rejected.
func (w wire) requiredStr(key string) (string, error) {
	s, err := w.str(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", decodef("key %q is empty", key)
	}
	return s, nil
}

func (w wire) decimal(key string) (decimal.NullDecimal, error) {
	v, err := w.field(key)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return core.ToDecimal(v)
}

// timestamp never fails on the value itself: anything that is not a
// parsable string becomes nil.
func (w wire) timestamp(key string) (*time.Time, error) {
	v, err := w.field(key)
	if err != nil {
		return nil, err
	}
	s, _ := v.(string)
	return core.ParseTimestamp(s), nil
}
