// Package binding compiles subscription rules into broker binding
// specifications. Compilation is pure: no state, no I/O, no failure modes.
package binding

import (
	"fmt"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// Compile expands a subscription's rules into the bindings the broker
// consumes.
//
// A TopicRule becomes exactly one binding on the topic exchange with the
// literal routing key. A HeaderRule becomes one binding on the headers
// exchange per severity level at or above its minimum, because the headers
// exchange matches values by equality only. A queue holding both rule kinds
// can receive duplicate deliveries for messages matching both; that is
// accepted and not deduplicated.
//
// Output order is deterministic: rules in input order, header expansions by
// severity ascending. Rule values are validated upstream, so an out-of-range
// severity or an unknown rule variant is a programming error and panics.
func Compile(sub domain.Subscription) []domain.Binding {
	var binds []domain.Binding
	for _, rule := range sub.Rules {
		switch r := rule.(type) {
		case domain.TopicRule:
			binds = append(binds, domain.Binding{
				Exchange:   domain.ExchangeTopic,
				RoutingKey: r.Topic,
			})
		case domain.HeaderRule:
			if !r.MinSeverity.IsValid() {
				panic(fmt.Sprintf("binding: header rule %q has out-of-range severity %d",
					r.Key, int(r.MinSeverity)))
			}
			for _, sev := range domain.Severities {
				if sev < r.MinSeverity {
					continue
				}
				binds = append(binds, domain.Binding{
					Exchange:  domain.ExchangeHeaders,
					Arguments: domain.HeaderArguments(r.Key, sev),
				})
			}
		default:
			panic(fmt.Sprintf("binding: unknown rule variant %T", rule))
		}
	}
	return binds
}
