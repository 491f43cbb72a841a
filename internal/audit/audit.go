// Package audit records order-affecting broker actions as an append-only
// CSV trail. Sinks are write-only; nothing in this module reads them back.
package audit

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-broker/internal/core"
)

// Entry is one audit row. Empty OrderID/Facility and invalid Price/Amount
// are written as empty fields.
type Entry struct {
	Time     time.Time
	Event    core.EventKind
	OrderID  string
	Price    decimal.NullDecimal
	Amount   decimal.NullDecimal
	Success  bool
	Facility string
}

type Sink interface {
	Append(entry Entry) error
}

// Header is the first line of every audit file.
var Header = []string{"date time", "event", "order id", "price", "amount", "success", "facility"}

const (
	fileTimeLayout  = "20060102150405"
	entryTimeLayout = "2006-01-02 15:04:05.000000"
)

// Record renders the entry as CSV fields in Header order.
func (e Entry) Record() []string {
	return []string{
		e.Time.Local().Format(entryTimeLayout),
		string(e.Event),
		e.OrderID,
		nullString(e.Price),
		nullString(e.Amount),
		boolString(e.Success),
		e.Facility,
	}
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func boolString(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

type discard struct{}

func (discard) Append(Entry) error { return nil }

// Discard drops every entry. Used when audit logging is disabled.
var Discard Sink = discard{}

// MemorySink keeps entries in memory; safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Append(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
