package worker

import (
	"context"
	"testing"
	"time"

	"expensedash/internal/amqp"
	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber replays queued messages, then waits for cancellation.
type fakeSubscriber struct {
	origin string
	queue  []*amqp.InvalidationMessage
}

func (f *fakeSubscriber) Origin() string { return f.origin }

func (f *fakeSubscriber) Consume(ctx context.Context, handler func(context.Context, *amqp.InvalidationMessage) error) error {
	for _, m := range f.queue {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

type recordingInvalidator struct {
	collections []string
}

func (r *recordingInvalidator) InvalidateCollection(_ context.Context, collection string) bool {
	r.collections = append(r.collections, collection)
	return true
}

func TestHandleSkipsOwnMessages(t *testing.T) {
	target := &recordingInvalidator{}
	l := NewInvalidationListener(&fakeSubscriber{origin: "me"}, target)
	ctx := context.Background()

	require.NoError(t, l.Handle(ctx, amqp.NewInvalidationMessage("expenses", amqp.OpInsert, "1", "me")))
	require.NoError(t, l.Handle(ctx, amqp.NewInvalidationMessage("expenses", amqp.OpDelete, "2", "peer")))

	assert.Equal(t, []string{"expenses"}, target.collections)
}

func TestRunAppliesRemoteWrites(t *testing.T) {
	// Two processes share one store; only the writer's cache sees the insert
	// until the reader handles the broadcast.
	gw := memory.New()
	reader := dashboard.New(gw, dashboard.NewSnapshots(gw, 0), "expenses", nil)
	writer := dashboard.New(gw, dashboard.NewSnapshots(gw, 0), "expenses", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snap, err := reader.Snapshot(ctx)
	require.NoError(t, err)
	require.Zero(t, snap.Len())

	id, err := writer.AddExpense(ctx, dashboard.ExpenseInput{
		Date: "2024-05-10", Merchant: "Tim Hortons", Category: string(core.FoodBeverage),
		Amount: "4.50", PaymentMethod: string(core.Debit),
	})
	require.NoError(t, err)

	snap, err = reader.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Len(), "reader still serves its cached snapshot")

	sub := &fakeSubscriber{
		origin: "reader",
		queue:  []*amqp.InvalidationMessage{amqp.NewInvalidationMessage("expenses", amqp.OpInsert, id, "writer")},
	}
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewInvalidationListener(sub, reader).Run(runCtx) }()

	require.Eventually(t, func() bool {
		return reader.CacheStats().Invalidations == 1
	}, time.Second, 5*time.Millisecond)
	stop()
	assert.ErrorIs(t, <-done, context.Canceled)

	snap, err = reader.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}
