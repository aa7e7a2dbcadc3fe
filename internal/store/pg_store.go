package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

type pgSubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewPgSubscriptionStore returns a SubscriptionStore backed by PostgreSQL.
// The schema (queues, topic_bindings, header_bindings) is owned and
// migrated by the web application; this side only reads it.
func NewPgSubscriptionStore(pool *pgxpool.Pool) SubscriptionStore {
	return &pgSubscriptionStore{pool: pool}
}

func (s *pgSubscriptionStore) ListActiveQueues(ctx context.Context, kind domain.BackendKind) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, identity
		FROM queues
		WHERE delivery_type = $1 AND batch IS NULL
		ORDER BY identity`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s queues: %w", kind, err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	var ids []string
	for rows.Next() {
		var id, identity string
		if err := rows.Scan(&id, &identity); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		subs = append(subs, domain.Subscription{
			Queue:    domain.QueueName(kind, identity),
			Kind:     kind,
			Identity: identity,
		})
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s queues: %w", kind, err)
	}

	for i := range subs {
		rules, err := s.loadRules(ctx, ids[i])
		if err != nil {
			return nil, fmt.Errorf("load rules for %s: %w", subs[i].Queue, err)
		}
		subs[i].Rules = rules
	}
	return subs, nil
}

func (s *pgSubscriptionStore) GetQueue(ctx context.Context, name string) (*domain.Subscription, error) {
	kind, identity, err := domain.ParseQueueName(name)
	if err != nil {
		return nil, err
	}

	var id string
	var batch *int
	err = s.pool.QueryRow(ctx, `
		SELECT id, batch
		FROM queues
		WHERE delivery_type = $1 AND identity = $2`,
		string(kind), identity).Scan(&id, &batch)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue %s: %w", name, err)
	}

	rules, err := s.loadRules(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load rules for %s: %w", name, err)
	}

	return &domain.Subscription{
		Queue:    name,
		Kind:     kind,
		Identity: identity,
		Batch:    batch,
		Rules:    rules,
	}, nil
}

// loadRules fetches topic rules then header rules for one queue. The fixed
// ORDER BY clauses keep rule order, and therefore compiled binding order,
// deterministic.
func (s *pgSubscriptionStore) loadRules(ctx context.Context, queueID string) ([]domain.Rule, error) {
	var rules []domain.Rule

	rows, err := s.pool.Query(ctx, `
		SELECT topic FROM topic_bindings
		WHERE queue_id = $1
		ORDER BY topic`, queueID)
	if err != nil {
		return nil, fmt.Errorf("query topic bindings: %w", err)
	}
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan topic binding: %w", err)
		}
		rules = append(rules, domain.TopicRule{Topic: topic})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query topic bindings: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT key_name, severity FROM header_bindings
		WHERE queue_id = $1
		ORDER BY key_name, severity`, queueID)
	if err != nil {
		return nil, fmt.Errorf("query header bindings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var severity int
		if err := rows.Scan(&key, &severity); err != nil {
			return nil, fmt.Errorf("scan header binding: %w", err)
		}
		rules = append(rules, domain.HeaderRule{
			Key:         key,
			MinSeverity: domain.Severity(severity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query header bindings: %w", err)
	}

	return rules, nil
}
