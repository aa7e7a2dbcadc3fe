package broker

import (
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// payload is the JSON body publishers put on user queues.
type payload struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Body    string `json:"body"`
}

// decodeMessage maps an AMQP delivery onto the domain message. Decoding is
// forgiving: a non-JSON body becomes the message body verbatim, a missing
// severity header defaults to info. Dispatch should deliver what it can
// rather than reject messages from older publishers.
func decodeMessage(d amqp.Delivery) domain.Message {
	m := domain.Message{
		ID:       d.MessageId,
		Topic:    d.RoutingKey,
		Severity: headerSeverity(d.Headers),
	}

	var p payload
	if err := json.Unmarshal(d.Body, &p); err == nil {
		if p.ID != "" {
			m.ID = p.ID
		}
		m.Summary = p.Summary
		m.Body = p.Body
	} else {
		m.Body = string(d.Body)
	}
	return m
}

// headerSeverity extracts the numeric severity header. AMQP clients deliver
// numbers as a variety of concrete types depending on the publisher.
func headerSeverity(headers amqp.Table) domain.Severity {
	v, ok := headers[domain.SeverityHeader]
	if !ok {
		return domain.SeverityInfo
	}

	var sev domain.Severity
	switch n := v.(type) {
	case int:
		sev = domain.Severity(n)
	case int8:
		sev = domain.Severity(n)
	case int16:
		sev = domain.Severity(n)
	case int32:
		sev = domain.Severity(n)
	case int64:
		sev = domain.Severity(n)
	case float32:
		sev = domain.Severity(n)
	case float64:
		sev = domain.Severity(n)
	default:
		return domain.SeverityInfo
	}

	if !sev.IsValid() {
		return domain.SeverityInfo
	}
	return sev
}
