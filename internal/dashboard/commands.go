package dashboard

import (
	"context"
	"fmt"

	"expensedash/internal/core"
	"expensedash/internal/dataset"
)

// Command is a discrete user action handled by Dispatch.
type Command interface {
	command()
}

type (
	AddExpense struct {
		Input  ExpenseInput
		Filter dataset.Filter
	}

	RemoveExpense struct {
		ID     string
		Filter dataset.Filter
	}

	SetFilter struct {
		Category string
		Month    string
	}

	// Refresh discards the cached snapshot and reloads it.
	Refresh struct {
		Filter dataset.Filter
	}
)

func (AddExpense) command()    {}
func (RemoveExpense) command() {}
func (SetFilter) command()     {}
func (Refresh) command()       {}

// Dispatch runs cmd and returns the resulting view. When a write is rejected
// the view still reflects the unchanged data, with Error set.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) (ViewState, error) {
	var (
		filter dataset.Filter
		notice string
		cmdErr error
	)
	switch cmd := cmd.(type) {
	case AddExpense:
		filter = cmd.Filter
		var id string
		id, cmdErr = c.AddExpense(ctx, cmd.Input)
		if cmdErr == nil {
			notice = fmt.Sprintf("Added expense %s.", id)
		}
	case RemoveExpense:
		filter = cmd.Filter
		var removed bool
		removed, cmdErr = c.RemoveExpense(ctx, cmd.ID)
		switch {
		case cmdErr != nil:
		case removed:
			notice = "Expense removed."
		default:
			notice = "No expense with that id; nothing removed."
		}
	case SetFilter:
		filter = dataset.Filter{Category: cmd.Category, Month: cmd.Month}
	case Refresh:
		filter = cmd.Filter
		c.Refresh(ctx)
		notice = "Data refreshed."
	default:
		return ViewState{}, core.Errorf(core.KindInternal, "dispatch", "unknown command %T", cmd)
	}

	view, err := c.View(ctx, filter)
	if err != nil {
		if cmdErr != nil {
			return ViewState{}, cmdErr
		}
		return ViewState{}, err
	}
	view.Notice = notice
	if cmdErr != nil {
		view.Error = cmdErr.Error()
	}
	return view, cmdErr
}
