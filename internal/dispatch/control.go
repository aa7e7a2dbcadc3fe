package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/broker"
	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// decodeControlEvent parses and validates the JSON body of a control-queue
// message.
func decodeControlEvent(body []byte) (domain.ControlEvent, error) {
	var ev domain.ControlEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", domain.ErrBadControlEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}

// controlLoop consumes queue-lifecycle events and drives the directory and
// broker accordingly. Malformed or stale events are logged and dropped;
// nothing that arrives here may take the loop down. Control messages are
// always acked — redelivering a bad event would only loop it.
func (s *Service) controlLoop(ctx context.Context, deliveries <-chan broker.Delivery) {
	defer s.controlWG.Done()
	s.logger.Info("control loop started", zap.String("queue", s.controlQueue))

	for d := range deliveries {
		ev, err := decodeControlEvent(d.Body)
		if err != nil {
			s.logger.Warn("dropping malformed control message", zap.Error(err))
			s.ackControl(d)
			continue
		}

		s.hooks.OnControl(ev.Kind)
		switch ev.Kind {
		case domain.ControlQueueCreated:
			s.handleQueueCreated(ctx, ev.Queue)
		case domain.ControlQueueDeleted:
			s.handleQueueDeleted(ctx, ev.Queue)
		}
		s.ackControl(d)
	}

	s.logger.Info("control loop stopped")
}

func (s *Service) ackControl(d broker.Delivery) {
	if err := s.broker.Ack(d.Tag); err != nil {
		s.logger.Error("control ack failed", zap.Error(err))
	}
}

// handleQueueCreated re-fetches the subscription and opens its queue. The
// store lookup can miss when the queue was deleted again before this event
// was processed; that race is benign, the matching delete event corrects
// state.
func (s *Service) handleQueueCreated(ctx context.Context, queue string) {
	log := s.logger.With(zap.String("queue", queue))

	if _, _, err := domain.ParseQueueName(queue); err != nil {
		log.Warn("dropping control message with bad queue name", zap.Error(err))
		return
	}

	sub, err := s.store.GetQueue(ctx, queue)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn("created queue not found in store, skipping")
		return
	}
	if err != nil {
		log.Error("store lookup failed, skipping queue", zap.Error(err))
		return
	}

	// Batched queues are outside the immediate dispatch path.
	if sub.Batch != nil {
		log.Info("skipping batched queue", zap.Int("batch_minutes", *sub.Batch))
		return
	}

	if err := s.openQueue(ctx, *sub); err != nil {
		if errors.Is(err, domain.ErrUnknownBackend) {
			log.Warn("queue for disabled backend, skipping")
			return
		}
		log.Error("failed to open queue", zap.Error(err))
		return
	}
	log.Info("queue consumer added")
}

// handleQueueDeleted cancels the consumer, deletes the broker queue (which
// drops its bindings), and unregisters the entry. Every step tolerates the
// queue already being gone.
func (s *Service) handleQueueDeleted(ctx context.Context, queue string) {
	log := s.logger.With(zap.String("queue", queue))

	if e, ok := s.dir.Lookup(queue); ok {
		if err := s.broker.Cancel(ctx, e.Consumer); err != nil {
			log.Warn("consumer cancel failed", zap.Error(err))
		}
	}
	if err := s.broker.DeleteQueue(ctx, queue); err != nil {
		log.Warn("queue delete failed", zap.Error(err))
	}
	s.dir.Unregister(queue)
	log.Info("queue consumer removed")
}
