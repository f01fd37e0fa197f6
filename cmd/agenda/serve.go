package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nick-dorsch/agenda/internal/agenda"
	"github.com/nick-dorsch/agenda/internal/config"
	"github.com/nick-dorsch/agenda/internal/db"
	"github.com/nick-dorsch/agenda/internal/mcp"
	"github.com/nick-dorsch/agenda/internal/notify"
	"github.com/nick-dorsch/agenda/internal/server"
	"github.com/nick-dorsch/agenda/internal/ui"
	"github.com/spf13/cobra"
)

func (c *cli) statsCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the counters of a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
				day, err := parseDay(date, app.Today(), app.Today())
				if err != nil {
					return err
				}
				st, err := app.Stats(ctx, day)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Agenda %s\n", st.Date)
				fmt.Fprintln(out, "=================")
				fmt.Fprintf(out, "Total:       %d\n", st.Total)
				fmt.Fprintf(out, "Completed:   %d\n", st.Completed)
				fmt.Fprintf(out, "Definitive:  %d\n", st.Definitive)
				fmt.Fprintf(out, "Not done:    %d\n", st.NotDone)
				fmt.Fprintf(out, "Forwarded:   %d\n", st.Forwarded)
				fmt.Fprintf(out, "Pending:     %d\n", st.Pending)
				fmt.Fprintf(out, "Rate:        %.0f%%\n", st.CompletionRate*100)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day (YYYY-MM-DD, today, yesterday)")
	return cmd
}

func (c *cli) closeDayCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "close-day",
		Short: "Review and close a day interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			toasts := &notify.Recorder{}
			rt, err := c.open(ctx, toasts)
			if err != nil {
				return err
			}
			defer rt.Close()

			day, err := parseDay(date, rt.app.Today(), rt.app.Today())
			if err != nil {
				return err
			}
			st, finished, err := ui.RunCloseDay(ctx, rt.app, toasts, day)
			if err != nil {
				return err
			}
			if finished {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Day %s closed: %d of %d tasks completed\n", st.Date, st.Completed, st.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to close (default today)")
	return cmd
}

func (c *cli) reconcileCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Look for broken reschedule links and record them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
				out := cmd.OutOrStdout()
				if !list {
					found, err := app.Reconcile(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%d discrepancies found\n", len(found))
				}

				open, err := app.OpenDiscrepancies(ctx)
				if err != nil {
					return err
				}
				for _, d := range open {
					fmt.Fprintf(out, "  %-22s %-10s %s\n", d.Kind, shortID(d.TaskID), d.Detail)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "Only list recorded discrepancies")
	return cmd
}

func (c *cli) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the JSONL task snapshot",
	}

	withDB := func(cmd *cobra.Command, fn func(ctx context.Context, database *db.DB) error) error {
		database, err := db.Open(c.cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		ctx := commandContext(cmd)
		if err := database.Init(ctx); err != nil {
			return err
		}
		return fn(ctx, database)
	}

	path := func(args []string) string {
		if len(args) > 0 {
			return args[0]
		}
		return c.cfg.SnapshotPath
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export [path]",
		Short: "Write every task to a snapshot file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, database *db.DB) error {
				p := path(args)
				if err := database.ExportSnapshot(ctx, p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported snapshot to %s\n", p)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "import [path]",
		Short: "Upsert every task of a snapshot file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, database *db.DB) error {
				p := path(args)
				n, err := database.ImportSnapshot(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d tasks from %s\n", n, p)
				return nil
			})
		},
	})
	return cmd
}

func (c *cli) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the agenda tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := c.open(ctx, notify.Log{Logger: c.log.With("component", "notify")})
			if err != nil {
				return err
			}
			defer rt.Close()

			go c.watch(ctx, rt.db)
			return mcp.Serve(mcp.NewServer(rt.app))
		},
	}
}

func (c *cli) webCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the HTTP API and web page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = c.cfg.Web.Port
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := c.open(ctx, notify.Log{Logger: c.log.With("component", "notify")})
			if err != nil {
				return err
			}
			defer rt.Close()

			go c.watch(ctx, rt.db)

			srv := server.NewServer(rt.app, c.log.With("component", "web"))
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			if err := srv.Start(fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", config.Default().Web.Port, "Port to listen on")
	return cmd
}

// watch picks up writes made by other agenda processes until ctx ends.
func (c *cli) watch(ctx context.Context, database *db.DB) {
	if c.cfg.Watch.Interval <= 0 {
		return
	}
	if err := database.Watch(ctx, c.cfg.Watch.Interval, c.log); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("database watch stopped", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
