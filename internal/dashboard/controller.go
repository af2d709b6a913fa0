// Package dashboard turns user commands into store writes, cache
// invalidations and freshly derived view states.
package dashboard

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"expensedash/internal/cache"
	"expensedash/internal/core"
	"expensedash/internal/dataset"
	"expensedash/internal/store"

	"github.com/go-playground/validator/v10"
)

// CollectionKey names a collection in the snapshot cache. Being a string
// kind, it cannot carry a store handle.
type CollectionKey string

// Snapshots is the cache of normalized collection snapshots.
type Snapshots = cache.Snapshots[CollectionKey, *dataset.Snapshot]

// Notifier tells other processes that a collection changed.
type Notifier interface {
	PublishInvalidation(ctx context.Context, collection, op, id string) error
}

// NewSnapshots builds the snapshot cache over gw. The collection handle is
// resolved by the gateway from the key on every refill.
func NewSnapshots(gw store.Gateway, ttl time.Duration) *Snapshots {
	return cache.NewSnapshots(func(ctx context.Context, key CollectionKey) (*dataset.Snapshot, error) {
		raw, err := gw.FetchAll(ctx, string(key))
		if err != nil {
			if core.KindOf(err) == core.KindInternal {
				err = core.E(core.KindConnection, "dashboard.load", err)
			}
			return nil, err
		}
		snap := dataset.Normalize(string(key), raw)
		if snap.Dropped > 0 || len(snap.Warnings) > 0 {
			slog.WarnContext(ctx, "Snapshot loaded with data quality warnings",
				"component", "dashboard",
				"collection", string(key),
				"rows", snap.Len(),
				"dropped", snap.Dropped,
				"warnings", len(snap.Warnings))
		}
		slog.DebugContext(ctx, "Snapshot loaded", "component", "dashboard", "collection", string(key), "rows", snap.Len())
		return snap, nil
	}, ttl)
}

type Controller struct {
	gw        store.Gateway
	snapshots *Snapshots
	key       CollectionKey
	notifier  Notifier
	validate  *validator.Validate
	now       func() time.Time
}

// New creates a controller for one collection. notifier may be nil.
func New(gw store.Gateway, snapshots *Snapshots, key CollectionKey, notifier Notifier) *Controller {
	return &Controller{
		gw:        gw,
		snapshots: snapshots,
		key:       key,
		notifier:  notifier,
		validate:  newValidator(),
		now:       time.Now,
	}
}

func (c *Controller) Collection() string { return string(c.key) }

func (c *Controller) CacheStats() cache.Stats { return c.snapshots.Stats() }

// Snapshot returns the cached snapshot, refilling it if needed.
func (c *Controller) Snapshot(ctx context.Context) (*dataset.Snapshot, error) {
	return c.snapshots.Load(ctx, c.key)
}

// ApplyFilters returns the snapshot rows matching category and month.
func (c *Controller) ApplyFilters(ctx context.Context, category, month string) ([]core.Expense, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return dataset.Apply(snap.Rows, dataset.Filter{Category: category, Month: month}), nil
}

// AddExpense validates in, inserts it and invalidates the snapshot. Invalid
// input never reaches the store, and a failed insert leaves the cache alone.
func (c *Controller) AddExpense(ctx context.Context, in ExpenseInput) (string, error) {
	e, err := c.toExpense(in)
	if err != nil {
		return "", core.E(core.KindValidation, "add_expense", err)
	}
	id, err := c.gw.Insert(ctx, string(c.key), e.Document())
	if err != nil {
		if !core.IsKind(err, core.KindWrite) {
			err = core.E(core.KindWrite, "add_expense", err)
		}
		return "", err
	}
	c.afterWrite(ctx, "insert", id)

	slog.InfoContext(ctx, "Expense added",
		"component", "dashboard",
		"expense_id", id,
		"merchant", e.Merchant,
		"category", string(e.Category),
		"amount", e.Amount.StringFixed(2))
	return id, nil
}

// RemoveExpense deletes the record with id. Removing an unknown id succeeds
// and reports false.
func (c *Controller) RemoveExpense(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, core.Errorf(core.KindValidation, "remove_expense", "id is required")
	}
	removed, err := c.gw.Delete(ctx, string(c.key), id)
	if err != nil {
		if !core.IsKind(err, core.KindWrite) {
			err = core.E(core.KindWrite, "remove_expense", err)
		}
		return false, err
	}
	c.afterWrite(ctx, "delete", id)

	slog.InfoContext(ctx, "Expense removed", "component", "dashboard", "expense_id", id, "removed", removed)
	return removed, nil
}

// Refresh drops the cached snapshot so the next read refetches.
func (c *Controller) Refresh(ctx context.Context) {
	c.snapshots.Invalidate(c.key)
	slog.DebugContext(ctx, "Snapshot invalidated by refresh", "component", "dashboard", "collection", string(c.key))
}

// InvalidateCollection drops the snapshot when collection is the one this
// controller serves. It reports whether anything was invalidated.
func (c *Controller) InvalidateCollection(ctx context.Context, collection string) bool {
	if CollectionKey(collection) != c.key {
		return false
	}
	c.snapshots.Invalidate(c.key)
	return true
}

func (c *Controller) afterWrite(ctx context.Context, op, id string) {
	c.snapshots.Invalidate(c.key)
	if c.notifier == nil {
		return
	}
	if err := c.notifier.PublishInvalidation(ctx, string(c.key), op, id); err != nil {
		slog.WarnContext(ctx, "Failed to publish invalidation",
			"component", "dashboard",
			"collection", string(c.key),
			"operation", op,
			"error", err)
	}
}
