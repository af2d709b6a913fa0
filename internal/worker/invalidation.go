// Package worker runs the background listener that keeps this process's
// snapshot cache in step with writes made by other processes.
package worker

import (
	"context"
	"log/slog"

	"expensedash/internal/amqp"
)

// Subscriber delivers invalidation messages until ctx is done.
type Subscriber interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.InvalidationMessage) error) error
	Origin() string
}

// Invalidator drops a cached collection snapshot.
type Invalidator interface {
	InvalidateCollection(ctx context.Context, collection string) bool
}

// InvalidationListener applies remote invalidations to the local cache.
type InvalidationListener struct {
	sub    Subscriber
	target Invalidator
}

func NewInvalidationListener(sub Subscriber, target Invalidator) *InvalidationListener {
	return &InvalidationListener{sub: sub, target: target}
}

// Run blocks until ctx is canceled or the subscriber gives up.
func (l *InvalidationListener) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Invalidation listener started", "component", "worker", "origin", l.sub.Origin())
	return l.sub.Consume(ctx, l.Handle)
}

// Handle processes one message. Messages published by this process are
// skipped because the local write already invalidated the cache.
func (l *InvalidationListener) Handle(ctx context.Context, msg *amqp.InvalidationMessage) error {
	if msg.Origin == l.sub.Origin() {
		return nil
	}
	if l.target.InvalidateCollection(ctx, msg.Collection) {
		slog.InfoContext(ctx, "Snapshot invalidated by remote write",
			"component", "worker",
			"collection", msg.Collection,
			"operation", msg.Op,
			"expense_id", msg.ID,
			"origin", msg.Origin)
	}
	return nil
}
