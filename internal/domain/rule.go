package domain

// Header names and values used in compiled header-exchange bindings.
const (
	// SeverityHeader is the message header carrying the numeric severity.
	SeverityHeader = "severity"

	// matchHeader and matchAll instruct the headers exchange to require
	// every listed header to match.
	matchHeader = "x-match"
	matchAll    = "all"
)

// Rule is one routing preference inside a subscription. The set of variants
// is closed: TopicRule and HeaderRule.
type Rule interface {
	isRule()
}

// TopicRule matches the literal routing key on the topic exchange.
type TopicRule struct {
	Topic string
}

func (TopicRule) isRule() {}

// HeaderRule matches a header key at or above a minimum severity. The
// headers exchange cannot express inequalities, so the compiler expands one
// HeaderRule into one binding per severity level >= MinSeverity.
type HeaderRule struct {
	Key         string
	MinSeverity Severity
}

func (HeaderRule) isRule() {}

// ExchangeKind selects which broker exchange a binding targets.
type ExchangeKind string

const (
	ExchangeTopic   ExchangeKind = "topic"
	ExchangeHeaders ExchangeKind = "headers"
)

// Binding is one compiled broker binding. Topic bindings carry a routing
// key and no arguments; header bindings carry no routing key and a full
// match-argument table.
type Binding struct {
	Exchange   ExchangeKind
	RoutingKey string
	Arguments  map[string]any
}

// HeaderArguments builds the match-argument table for one severity level of
// a HeaderRule.
func HeaderArguments(key string, severity Severity) map[string]any {
	return map[string]any{
		matchHeader:    matchAll,
		key:            true,
		SeverityHeader: int(severity),
	}
}
