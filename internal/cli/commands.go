package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"text/tabwriter"
	"time"

	"expensedash/internal/cache"
	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/dataset"
	"expensedash/internal/export"
	apphttp "expensedash/internal/http"
	"expensedash/internal/log"
	"expensedash/internal/store/postgres"
	"expensedash/internal/store/sqlite"
	"expensedash/internal/worker"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type filterFlags struct {
	category string
	month    string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", dataset.All, "only include this category")
	cmd.Flags().StringVar(&f.month, "month", dataset.All, "only include this month (YYYY-MM)")
}

func (f *filterFlags) filter() dataset.Filter {
	return dataset.Filter{Category: f.category, Month: f.month}
}

func newServeCommand(st *state) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.run(cmd, func(ctx context.Context, a *app) error {
				if port != "" {
					a.cfg.Port = port
				}
				return serve(ctx, a)
			})
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	ctrl, snapshots, err := a.controller(ctx)
	if err != nil {
		return err
	}
	gw, err := a.gateway(ctx)
	if err != nil {
		return err
	}
	uploader, err := a.uploader(ctx)
	if err != nil {
		return err
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:            ":" + a.cfg.Port,
		Controller:      ctrl,
		Uploader:        uploader,
		Store:           gw,
		Logger:          a.logger.WithComponent(log.ComponentHTTP),
		Cleaners:        []cache.Cleaner{snapshots},
		CleanupInterval: a.cfg.CacheCleanupInterval,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("Starting HTTP server",
			"operation", log.OpStartup,
			"addr", srv.Addr,
			"backend", a.cfg.DataBackend,
			"collection", a.cfg.Collection)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return core.E(core.KindConnection, "cli.serve", err)
		}
		return nil
	})
	if a.notifier != nil {
		listener := worker.NewInvalidationListener(a.notifier, ctrl)
		g.Go(func() error {
			err := listener.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("Invalidation listener stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down", "operation", log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// An interrupt still reports as canceled so the process exits 130.
		return ctx.Err()
	})
	return g.Wait()
}

func newAddCommand(st *state) *cobra.Command {
	var (
		in      dashboard.ExpenseInput
		receipt string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.run(cmd, func(ctx context.Context, a *app) error {
				ctrl, _, err := a.controller(ctx)
				if err != nil {
					return err
				}
				if receipt != "" {
					uri, err := uploadReceipt(ctx, a, receipt)
					if err != nil {
						return err
					}
					in.ReceiptImage = uri
				}
				id, err := ctrl.AddExpense(ctx, in)
				if err != nil {
					return err
				}
				log.NewStructuredLogger(a.logger.WithComponent(log.ComponentCLI)).
					LogExpenseAdded(ctx, id, in.Merchant, in.Category, in.Amount)
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Date, "date", "", "expense date (YYYY-MM-DD, default today)")
	f.StringVar(&in.Merchant, "merchant", "", "merchant name")
	f.StringVar(&in.Category, "category", "", "category")
	f.StringVar(&in.Amount, "amount", "", "amount, e.g. 12.50")
	f.StringVar(&in.PaymentMethod, "payment-method", string(core.CreditCard), "payment method")
	f.StringVar(&in.Notes, "notes", "", "free-form notes")
	f.StringVar(&receipt, "receipt", "", "path to a receipt image (JPEG or PNG)")
	return cmd
}

func uploadReceipt(ctx context.Context, a *app, path string) (string, error) {
	uploader, err := a.uploader(ctx)
	if err != nil {
		return "", err
	}
	if uploader == nil {
		return "", core.Errorf(core.KindConfiguration, "cli.add", "receipt storage is disabled")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", core.E(core.KindValidation, "cli.add", err)
	}
	rec, err := uploader.Upload(ctx, data)
	if err != nil {
		return "", err
	}
	return rec.URI, nil
}

func newRemoveCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an expense by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.run(cmd, func(ctx context.Context, a *app) error {
				ctrl, _, err := a.controller(ctx)
				if err != nil {
					return err
				}
				removed, err := ctrl.RemoveExpense(ctx, args[0])
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintln(cmd.OutOrStdout(), "Expense removed.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No expense with that id; nothing removed.")
				}
				return nil
			})
		},
	}
}

func newListCommand(st *state) *cobra.Command {
	var (
		ff    filterFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.run(cmd, func(ctx context.Context, a *app) error {
				view, err := currentView(ctx, a, ff.filter())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if view.Mode == dashboard.ModeAddOnly {
					fmt.Fprintf(out, "No expenses recorded in %s.\n", view.Collection)
					return nil
				}
				rows := view.Rows
				if limit > 0 && len(rows) > limit {
					rows = rows[:limit]
				}
				return writeRows(out, rows)
			})
		},
	}
	ff.bind(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many rows (0 for all)")
	return cmd
}

func writeRows(out io.Writer, rows []core.Expense) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tMERCHANT\tCATEGORY\tAMOUNT\tMETHOD")
	for _, e := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date.Format("2006-01-02"), e.Merchant, e.Category, e.Amount.StringFixed(2), e.PaymentMethod)
	}
	return tw.Flush()
}

func newSummaryCommand(st *state) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print totals by category and month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.run(cmd, func(ctx context.Context, a *app) error {
				view, err := currentView(ctx, a, ff.filter())
				if err != nil {
					return err
				}
				return writeSummary(cmd.OutOrStdout(), view)
			})
		},
	}
	ff.bind(cmd)
	return cmd
}

func writeSummary(out io.Writer, view dashboard.ViewState) error {
	fmt.Fprintf(out, "Collection: %s\n", view.Collection)
	fmt.Fprintf(out, "Filter:     %s / %s\n", view.Filter.Category, view.Filter.Month)
	fmt.Fprintf(out, "Total:      %s\n", view.Summary.Total.StringFixed(2))
	fmt.Fprintf(out, "Count:      %d\n", view.Summary.Count)
	fmt.Fprintf(out, "Average:    %s\n", view.Summary.Average.StringFixed(2))
	if view.Dropped > 0 {
		fmt.Fprintf(out, "Skipped:    %d unreadable records\n", view.Dropped)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if len(view.ByCategory) > 0 {
		fmt.Fprintln(tw, "\nCATEGORY\tAMOUNT\tCOUNT")
		for _, c := range view.ByCategory {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Category, c.Amount.StringFixed(2), c.Count)
		}
	}
	if len(view.Monthly) > 0 {
		fmt.Fprintln(tw, "\nMONTH\tAMOUNT")
		for _, m := range view.Monthly {
			fmt.Fprintf(tw, "%s\t%s\n", m.Month, m.Amount.StringFixed(2))
		}
	}
	return tw.Flush()
}

func currentView(ctx context.Context, a *app, f dataset.Filter) (dashboard.ViewState, error) {
	ctrl, _, err := a.controller(ctx)
	if err != nil {
		return dashboard.ViewState{}, err
	}
	return ctrl.View(ctx, f)
}

func newExportCommand(st *state) *cobra.Command {
	var (
		ff   filterFlags
		path string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered expenses to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.run(cmd, func(ctx context.Context, a *app) error {
				ctrl, _, err := a.controller(ctx)
				if err != nil {
					return err
				}
				rows, err := ctrl.ApplyFilters(ctx, ff.category, ff.month)
				if err != nil {
					return err
				}
				if path == "" {
					path = a.cfg.Collection + ".xlsx"
				}
				file, err := os.Create(path)
				if err != nil {
					return core.E(core.KindWrite, "cli.export", err)
				}
				if err := export.WriteXLSX(file, rows); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return core.E(core.KindWrite, "cli.export", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d expenses to %s\n", len(rows), path)
				return nil
			})
		},
	}
	ff.bind(cmd)
	cmd.Flags().StringVarP(&path, "output", "o", "", "output file (default <collection>.xlsx)")
	return cmd
}

func newMigrateCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations for the sqlite or postgres backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.run(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				switch a.cfg.DataBackend {
				case "sqlite":
					if err := sqlite.RunMigrations(a.cfg.SQLiteDBPath); err != nil {
						return core.E(core.KindConnection, "cli.migrate", err)
					}
				case "postgres":
					repo, err := postgres.New(ctx, a.cfg.DatabaseURL)
					if err != nil {
						return err
					}
					defer repo.Close()
					if err := repo.Migrate(ctx); err != nil {
						return err
					}
				default:
					fmt.Fprintf(out, "Backend %s has no schema to migrate.\n", a.cfg.DataBackend)
					return nil
				}
				fmt.Fprintf(out, "Migrations applied for %s backend.\n", a.cfg.DataBackend)
				return nil
			})
		},
	}
}
