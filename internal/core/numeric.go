package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const timestampLayout = "2006-01-02T15:04:05"

// ToDecimal normalizes a wire numeric into a decimal. A nil input yields an
// invalid NullDecimal so that "unknown" stays distinct from zero.
func ToDecimal(v any) (decimal.NullDecimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case json.Number:
		return parseDecimal(string(n))
	case string:
		return parseDecimal(n)
	case float64:
		return valid(decimal.NewFromFloat(n)), nil
	case float32:
		return valid(decimal.NewFromFloat32(n)), nil
	case int:
		return valid(decimal.NewFromInt(int64(n))), nil
	case int32:
		return valid(decimal.NewFromInt32(n)), nil
	case int64:
		return valid(decimal.NewFromInt(n)), nil
	case decimal.Decimal:
		return valid(n), nil
	case decimal.NullDecimal:
		return n, nil
	default:
		return decimal.NullDecimal{}, fmt.Errorf("%w: unsupported numeric %T", ErrDecode, v)
	}
}

func parseDecimal(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: invalid numeric %q: %v", ErrDecode, s, err)
	}
	return valid(d), nil
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// ParseTimestamp reads the leading YYYY-MM-DDTHH:MM:SS of an exchange
// timestamp as UTC. Fractions and zone suffixes are ignored; anything
// unparsable yields nil.
func ParseTimestamp(s string) *time.Time {
	if len(s) < len(timestampLayout) {
		return nil
	}
	t, err := time.ParseInLocation(timestampLayout, s[:len(timestampLayout)], time.UTC)
	if err != nil {
		return nil
	}
	return &t
}
