package domain

// ControlKind tags a queue-lifecycle event on the control queue.
type ControlKind string

const (
	ControlQueueCreated ControlKind = "queue.created"
	ControlQueueDeleted ControlKind = "queue.deleted"
)

func (k ControlKind) IsValid() bool {
	switch k {
	case ControlQueueCreated, ControlQueueDeleted:
		return true
	}
	return false
}

// ControlEvent is a decoded control-queue message. Queue is the
// fully-qualified queue identifier, "{kind}.{identity}".
type ControlEvent struct {
	Kind  ControlKind `json:"kind"`
	Queue string      `json:"queue"`
}

func (e ControlEvent) Validate() error {
	if !e.Kind.IsValid() {
		return ErrBadControlEvent
	}
	if e.Queue == "" {
		return ErrBadControlEvent
	}
	return nil
}
