// Package dispatch runs the long-lived delivery engine: one broker consumer
// per active user queue, a control consumer for queue lifecycle events, and
// the outcome-to-acknowledgement mapping.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/backend"
	"github.com/notifyhub/delivery-dispatch/internal/binding"
	"github.com/notifyhub/delivery-dispatch/internal/broker"
	"github.com/notifyhub/delivery-dispatch/internal/directory"
	"github.com/notifyhub/delivery-dispatch/internal/domain"
	"github.com/notifyhub/delivery-dispatch/internal/store"
)

// Hooks carries the metric callback functions injected by main. Using a
// struct keeps the service constructor signature clean and the package
// metrics-agnostic.
type Hooks struct {
	OnDelivered func(kind domain.BackendKind, latency time.Duration)
	OnFailed    func(kind domain.BackendKind, fatal bool)
	OnControl   func(kind domain.ControlKind)
	OnConsumers func(delta int)
}

func (h *Hooks) fillDefaults() {
	if h.OnDelivered == nil {
		h.OnDelivered = func(domain.BackendKind, time.Duration) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.BackendKind, bool) {}
	}
	if h.OnControl == nil {
		h.OnControl = func(domain.ControlKind) {}
	}
	if h.OnConsumers == nil {
		h.OnConsumers = func(int) {}
	}
}

// Service is the dispatch orchestrator. It owns the queue directory: all
// registrations happen here, either during the startup bulk load or on the
// control loop. Consumer goroutines only read their own entry.
type Service struct {
	broker   broker.Broker
	store    store.SubscriptionStore
	dir      *directory.Directory
	backends map[domain.BackendKind]backend.Backend

	controlQueue string
	controlTag   string

	logger *zap.Logger
	hooks  Hooks

	// controlWG tracks the control loop separately from the consumer
	// loops: Stop must drain the control loop before it snapshots the
	// directory, or an in-flight control event could register a consumer
	// the snapshot misses.
	controlWG sync.WaitGroup
	wg        sync.WaitGroup
}

// New wires the service. backends holds one entry per enabled backend
// kind; queues for kinds absent from the map are never consumed.
func New(
	bk broker.Broker,
	st store.SubscriptionStore,
	dir *directory.Directory,
	backends map[domain.BackendKind]backend.Backend,
	controlQueue string,
	logger *zap.Logger,
	hooks Hooks,
) *Service {
	hooks.fillDefaults()
	return &Service{
		broker:       bk,
		store:        st,
		dir:          dir,
		backends:     backends,
		controlQueue: controlQueue,
		logger:       logger,
		hooks:        hooks,
	}
}

// Start performs the bulk load — every non-batched subscription for every
// enabled backend gets its queue declared, bound, and consumed — then opens
// the control consumer for incremental updates. Errors here are fatal: a
// service that cannot reach the store or broker at startup has nothing to
// do.
func (s *Service) Start(ctx context.Context) error {
	for kind := range s.backends {
		subs, err := s.store.ListActiveQueues(ctx, kind)
		if err != nil {
			return fmt.Errorf("list %s queues: %w", kind, err)
		}
		s.logger.Info("binding user queues",
			zap.String("backend", string(kind)),
			zap.Int("count", len(subs)),
		)
		for _, sub := range subs {
			if err := s.openQueue(ctx, sub); err != nil {
				return fmt.Errorf("open queue %s: %w", sub.Queue, err)
			}
		}
	}

	if err := s.broker.DeclareQueue(ctx, s.controlQueue); err != nil {
		return fmt.Errorf("declare control queue: %w", err)
	}
	deliveries, tag, err := s.broker.Consume(ctx, s.controlQueue)
	if err != nil {
		return fmt.Errorf("consume control queue: %w", err)
	}
	s.controlTag = tag

	s.controlWG.Add(1)
	go s.controlLoop(ctx, deliveries)

	s.logger.Info("dispatch service started", zap.Int("queues", s.dir.Len()))
	return nil
}

// Stop closes the control consumer and drains the control loop first, so no
// further consumers can be registered, then cancels every user consumer and
// waits for in-flight deliveries to finish. No timeout is imposed here; the
// backends' own I/O deadlines bound each delivery. The broker connection
// itself is closed by the caller afterwards.
func (s *Service) Stop(ctx context.Context) {
	if s.controlTag != "" {
		if err := s.broker.Cancel(ctx, s.controlTag); err != nil {
			s.logger.Warn("control consumer cancel failed", zap.Error(err))
		}
	}
	s.controlWG.Wait()

	for _, e := range s.dir.Snapshot() {
		if err := s.broker.Cancel(ctx, e.Consumer); err != nil {
			s.logger.Warn("consumer cancel failed",
				zap.String("queue", e.Queue), zap.Error(err))
		}
	}
	s.wg.Wait()
	s.logger.Info("dispatch service stopped")
}

// openQueue declares, binds, registers, and starts consuming one
// subscription's queue. Re-opening an already-consumed queue first cancels
// the old consumer; a binding change arrives as delete + recreate, but a
// duplicated create must not leak consumers.
func (s *Service) openQueue(ctx context.Context, sub domain.Subscription) error {
	be, ok := s.backends[sub.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownBackend, sub.Kind)
	}

	if prev, ok := s.dir.Lookup(sub.Queue); ok {
		if err := s.broker.Cancel(ctx, prev.Consumer); err != nil {
			s.logger.Warn("stale consumer cancel failed",
				zap.String("queue", sub.Queue), zap.Error(err))
		}
		for _, b := range prev.Bindings {
			if err := s.broker.Unbind(ctx, sub.Queue, b); err != nil {
				s.logger.Warn("stale binding removal failed",
					zap.String("queue", sub.Queue), zap.Error(err))
			}
		}
	}

	if err := s.broker.DeclareQueue(ctx, sub.Queue); err != nil {
		return err
	}
	binds := binding.Compile(sub)
	for _, b := range binds {
		if err := s.broker.Bind(ctx, sub.Queue, b); err != nil {
			return err
		}
	}

	deliveries, tag, err := s.broker.Consume(ctx, sub.Queue)
	if err != nil {
		return err
	}

	entry := directory.Entry{
		Queue:    sub.Queue,
		Kind:     sub.Kind,
		Identity: sub.Identity,
		Backend:  be,
		Consumer: tag,
		Bindings: binds,
	}
	s.dir.Register(entry)
	s.hooks.OnConsumers(1)

	s.wg.Add(1)
	go s.consumeLoop(ctx, entry, deliveries)
	return nil
}

// consumeLoop processes one queue's deliveries in broker order until the
// consumer channel closes.
func (s *Service) consumeLoop(ctx context.Context, e directory.Entry, deliveries <-chan broker.Delivery) {
	defer s.wg.Done()
	for d := range deliveries {
		s.dispatch(ctx, e, d)
	}
	s.hooks.OnConsumers(-1)
}

// dispatch hands one delivery to the queue's backend and acknowledges
// according to the outcome. A single failed delivery never stops the loop.
func (s *Service) dispatch(ctx context.Context, e directory.Entry, d broker.Delivery) {
	start := time.Now()
	out := e.Backend.Deliver(ctx, d.Message, e.Identity)

	log := s.logger.With(
		zap.String("queue", e.Queue),
		zap.String("backend", string(e.Kind)),
		zap.String("message_id", d.Message.ID),
	)

	switch out.Kind {
	case domain.Delivered:
		if err := s.broker.Ack(d.Tag); err != nil {
			log.Error("ack failed", zap.Error(err))
			return
		}
		s.hooks.OnDelivered(e.Kind, time.Since(start))
		log.Info("message delivered", zap.Duration("latency", time.Since(start)))

	case domain.RetryableFailure:
		log.Warn("delivery failed, returning message to queue", zap.Error(out.Reason))
		if err := s.broker.Nack(d.Tag, true); err != nil {
			log.Error("nack failed", zap.Error(err))
		}
		s.hooks.OnFailed(e.Kind, false)

	case domain.FatalFailure:
		log.Error("delivery failed permanently, dropping message", zap.Error(out.Reason))
		if err := s.broker.Nack(d.Tag, false); err != nil {
			log.Error("nack failed", zap.Error(err))
		}
		s.hooks.OnFailed(e.Kind, true)
	}
}
