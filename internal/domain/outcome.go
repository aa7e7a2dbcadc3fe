package domain

// OutcomeKind is the tagged result of one delivery attempt. It drives the
// broker acknowledgement: Delivered acks, RetryableFailure nacks with
// requeue, FatalFailure nacks without requeue.
type OutcomeKind int

const (
	Delivered OutcomeKind = iota
	RetryableFailure
	FatalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case RetryableFailure:
		return "retryable_failure"
	case FatalFailure:
		return "fatal_failure"
	}
	return "unknown"
}

// Outcome pairs the result kind with the failure reason, if any.
type Outcome struct {
	Kind   OutcomeKind
	Reason error
}

func Success() Outcome {
	return Outcome{Kind: Delivered}
}

// Retryable marks a transient failure; the message will be redelivered.
func Retryable(reason error) Outcome {
	return Outcome{Kind: RetryableFailure, Reason: reason}
}

// Fatal marks a permanent failure; the message is dropped.
func Fatal(reason error) Outcome {
	return Outcome{Kind: FatalFailure, Reason: reason}
}
