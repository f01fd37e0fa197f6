package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nick-dorsch/agenda/internal/agenda"
	"github.com/nick-dorsch/agenda/internal/config"
	"github.com/nick-dorsch/agenda/internal/db"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/pkg/models"
	"github.com/spf13/cobra"
)

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create the .agenda directory, database and config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetDir := "."
			if len(args) > 0 {
				targetDir = args[0]
			}
			return c.runInit(cmd, targetDir)
		},
	}
}

func (c *cli) runInit(cmd *cobra.Command, targetDir string) error {
	out := cmd.OutOrStdout()
	defaults := config.Default()

	agendaDir := filepath.Join(targetDir, ".agenda")
	if err := os.MkdirAll(agendaDir, 0755); err != nil {
		return fmt.Errorf("failed to create .agenda directory: %w", err)
	}
	fmt.Fprintln(out, "✓ Created .agenda/ directory")

	gitignorePath := filepath.Join(agendaDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("agenda.db*\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Fprintln(out, "✓ Created .agenda/.gitignore")

	// Default paths are relative to the target directory.
	dbPath := c.cfg.DBPath
	if dbPath == defaults.DBPath {
		dbPath = filepath.Join(targetDir, dbPath)
	}
	snapshotPath := c.cfg.SnapshotPath
	if snapshotPath == defaults.SnapshotPath {
		snapshotPath = filepath.Join(targetDir, snapshotPath)
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	if err := database.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Fprintf(out, "✓ Initialized database at %s\n", dbPath)

	if _, err := os.Stat(snapshotPath); err == nil {
		n, err := database.ImportSnapshot(ctx, snapshotPath)
		if err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Fprintf(out, "✓ Imported %d tasks from %s\n", n, snapshotPath)
	}

	configPath := filepath.Join(agendaDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(defaults, configPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote %s\n", configPath)
	}

	fmt.Fprintln(out, "✓ Agenda initialized successfully")
	return nil
}

func (c *cli) addCmd() *cobra.Command {
	var (
		in       agenda.NewTask
		date     string
		delivery []string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
				today := app.Today()
				d, err := parseDay(date, today, today)
				if err != nil {
					return err
				}
				in.Title = strings.Join(args, " ")
				in.Date = d
				in.DeliveryDates = nil
				for _, raw := range delivery {
					dd, err := parseDay(raw, today, today)
					if err != nil {
						return err
					}
					in.DeliveryDates = append(in.DeliveryDates, dd)
				}

				t, err := app.Create(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.ID)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&date, "date", "", "Scheduled date (YYYY-MM-DD, today, tomorrow)")
	f.StringSliceVar(&delivery, "delivery", nil, "Extra dates the task is due on")
	f.StringVar(&in.Description, "description", "", "Task description")
	f.IntVar(&in.Order, "order", 0, "Manual rank within the day (0 = unranked)")
	f.StringVar(&in.Type, "type", "", "Task type")
	f.StringVar(&in.Priority, "priority", "", "Priority")
	f.StringVar(&in.Category, "category", "", "Category")
	f.StringVar(&in.TimeInvestment, "time", "", "Expected time investment")
	f.StringArrayVar(&in.SubItems, "item", nil, "Checklist item (repeatable)")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var date, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks of a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
				var day models.Date
				if date != "all" {
					d, err := parseDay(date, app.Today(), app.Today())
					if err != nil {
						return err
					}
					day = d
				}

				tasks, err := app.Tasks(ctx, day)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-10s %-12s %-17s %-5s %s\n", "ID", "DATE", "STATUS", "DONE", "TITLE")
				fmt.Fprintln(out, strings.Repeat("-", 70))
				for _, t := range tasks {
					if status != "" && string(t.Status) != status {
						continue
					}
					sealed := ""
					if t.IsConcluded {
						sealed = "yes"
					}
					fmt.Fprintf(out, "%-10s %-12s %-17s %-5s %s\n", shortID(t.ID), t.ScheduledDate, t.Status, sealed, t.Title)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to list (YYYY-MM-DD, today, tomorrow, all)")
	cmd.Flags().StringVar(&status, "status", "", "Only show tasks with this status")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a task with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
				t, err := app.Get(ctx, args[0])
				if err != nil {
					return err
				}
				printTask(cmd, t)
				return nil
			})
		},
	}
}

func printTask(cmd *cobra.Command, t models.Task) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", t.ID, t.Title)
	fmt.Fprintf(out, "  date:       %s\n", t.ScheduledDate)
	fmt.Fprintf(out, "  status:     %s\n", t.Status)
	fmt.Fprintf(out, "  concluded:  %t\n", t.IsConcluded)
	if t.AssignedPersonID != nil {
		fmt.Fprintf(out, "  assigned:   %s\n", *t.AssignedPersonID)
	}
	for _, item := range t.SubItems {
		mark := " "
		switch {
		case item.Completed:
			mark = "x"
		case item.NotDone:
			mark = "-"
		}
		fmt.Fprintf(out, "  [%s] %s\n", mark, item.Text)
	}
	for _, rec := range t.CompletionHistory {
		fmt.Fprintf(out, "  %s  %-9s %s\n", rec.CompletedAt.Format("2006-01-02 15:04"), rec.Status, rec.Date)
	}
	for _, rec := range t.ForwardHistory {
		fmt.Fprintf(out, "  %s  forward   %s -> %s %s\n", rec.ForwardedAt.Format("2006-01-02 15:04"), rec.OriginalDate, rec.NewDate, rec.Reason)
	}
}

func (c *cli) lifecycleCmd(use, short string, action func(*agenda.App, context.Context, string) (models.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
				_, err := action(app, ctx, args[0])
				return err
			})
		},
	}
}

func (c *cli) delegateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delegate <id> [person]",
		Short: "Assign a task to a person (no person clears it)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			person := ""
			if len(args) == 2 {
				person = args[1]
			}
			return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
				_, err := app.Delegate(ctx, args[0], person)
				return err
			})
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
				return app.Delete(ctx, args[0])
			})
		},
	}
}

// rescheduleFlags are the per-call overrides of the configured reschedule
// defaults.
type rescheduleFlags struct {
	cmd           *cobra.Command
	reason        string
	to            string
	keepOrder     bool
	keepChecklist bool
}

func addRescheduleFlags(cmd *cobra.Command) *rescheduleFlags {
	rf := &rescheduleFlags{cmd: cmd}
	f := cmd.Flags()
	f.StringVar(&rf.reason, "reason", "", "Why the task is moved")
	f.StringVar(&rf.to, "to", "", "Hand the new task to this person")
	f.BoolVar(&rf.keepOrder, "keep-order", false, "Keep the manual rank on the new task")
	f.BoolVar(&rf.keepChecklist, "keep-checklist", false, "Keep checklist progress on the new task")
	return rf
}

func (rf *rescheduleFlags) options(defaults reschedule.Options) *reschedule.Options {
	opts := defaults
	f := rf.cmd.Flags()
	if f.Changed("reason") {
		opts.Reason = rf.reason
	}
	if f.Changed("keep-order") {
		opts.KeepOrder = rf.keepOrder
	}
	if f.Changed("keep-checklist") {
		opts.KeepChecklist = rf.keepChecklist
	}
	opts.ForwardedTo = rf.to
	return &opts
}

func (c *cli) forwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "forward <id> <date>",
		Aliases: []string{"reschedule"},
		Short:   "Move a task to another day, keeping the original as history",
		Args:    cobra.ExactArgs(2),
	}
	rf := addRescheduleFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
			date, err := parseDay(args[1], app.Today(), "")
			if err != nil {
				return err
			}
			res, changed, err := app.Forward(ctx, args[0], date, rf.options(app.RescheduleDefaults()))
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintln(cmd.OutOrStdout(), res.Successor.ID)
			}
			return nil
		})
	}
	return cmd
}

func (c *cli) bulkCmd() *cobra.Command {
	var date, person string
	cmd := &cobra.Command{
		Use:   "bulk <complete|not-done|reschedule|delegate|delete|conclude> <id>...",
		Short: "Apply one action to several tasks",
		Args:  cobra.MinimumNArgs(2),
	}
	rf := addRescheduleFlags(cmd)
	cmd.Flags().StringVar(&date, "date", "", "Target date for reschedule")
	cmd.Flags().StringVar(&person, "person", "", "Person for delegate")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		action, err := agenda.ParseBulkAction(args[0])
		if err != nil {
			return err
		}
		return c.withApp(cmd, func(ctx context.Context, app *agenda.App) error {
			d, err := parseDay(date, app.Today(), "")
			if err != nil {
				return err
			}
			res, err := app.Bulk(ctx, agenda.BulkRequest{
				Action:   action,
				IDs:      args[1:],
				Date:     d,
				PersonID: person,
				Options:  rf.options(app.RescheduleDefaults()),
			})
			if err != nil {
				return err
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d of %d tasks failed", len(res.Failed), res.Attempts())
			}
			return nil
		})
	}
	return cmd
}
