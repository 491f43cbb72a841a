package alert

import (
	"bitflyer-broker/internal/audit"
)

// AuditSink forwards every entry to the wrapped sink and raises an alert
// for each failed order action.
type AuditSink struct {
	next    audit.Sink
	alerter Alerter
}

func NewAuditSink(next audit.Sink, alerter Alerter) *AuditSink {
	if next == nil {
		next = audit.Discard
	}
	return &AuditSink{next: next, alerter: alerter}
}

func (s *AuditSink) Append(entry audit.Entry) error {
	err := s.next.Append(entry)
	if !entry.Success && s.alerter != nil {
		record := entry.Record()
		fields := map[string]string{
			"order_id": record[2],
			"price":    record[3],
			"amount":   record[4],
		}
		if entry.Facility != "" {
			fields["facility"] = entry.Facility
		}
		s.alerter.Important("order_action_failed:"+string(entry.Event), fields)
	}
	return err
}
