package dashboard

import (
	"context"
	"time"

	"expensedash/internal/core"
	"expensedash/internal/dataset"
)

type Mode string

const (
	// ModeAddOnly is shown while the collection has no usable rows.
	ModeAddOnly   Mode = "add_only"
	ModeDashboard Mode = "dashboard"
)

// ViewState is everything the presentation layer needs to render one screen.
type ViewState struct {
	Mode           Mode
	Collection     string
	Filter         dataset.Filter
	Options        dataset.FilterOptions
	Rows           []core.Expense
	Summary        core.Summary
	ByCategory     []core.CategoryAmount
	Monthly        []core.MonthAmount
	Dropped        int
	LoadedAt       time.Time
	Categories     []core.Category
	PaymentMethods []core.PaymentMethod
	Notice         string
	Error          string
}

// View derives the view state for f from the current snapshot.
func (c *Controller) View(ctx context.Context, f dataset.Filter) (ViewState, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return ViewState{}, err
	}
	return buildView(snap, f), nil
}

func buildView(snap *dataset.Snapshot, f dataset.Filter) ViewState {
	opts := dataset.Options(snap.Rows)
	f = f.Sanitize(opts)
	rows := dataset.Apply(snap.Rows, f)

	mode := ModeDashboard
	if snap.Len() == 0 {
		mode = ModeAddOnly
	}
	return ViewState{
		Mode:           mode,
		Collection:     snap.Collection,
		Filter:         f,
		Options:        opts,
		Rows:           rows,
		Summary:        dataset.Summarize(rows),
		ByCategory:     dataset.GroupByCategory(rows),
		Monthly:        dataset.Monthly(rows),
		Dropped:        snap.Dropped,
		LoadedAt:       snap.LoadedAt,
		Categories:     core.Categories(),
		PaymentMethods: core.PaymentMethods(),
	}
}
