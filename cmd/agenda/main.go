package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nick-dorsch/agenda/internal/agenda"
	"github.com/nick-dorsch/agenda/internal/config"
	"github.com/nick-dorsch/agenda/internal/db"
	"github.com/nick-dorsch/agenda/internal/notify"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/internal/store"
	"github.com/nick-dorsch/agenda/internal/ui"
	"github.com/nick-dorsch/agenda/pkg/models"
	"github.com/spf13/cobra"
)

// cli holds the persistent flags and the configuration they resolve to.
type cli struct {
	cfgFile      string
	dbPath       string
	snapshotPath string
	owner        string
	verbose      bool

	cfg *config.Config
	log *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "agenda",
		Short: "Daily task agenda with rescheduling and an end-of-day review.",
		Long: `Agenda keeps dated tasks, records done / not done decisions, moves unfinished
work to another day while keeping its history, and walks you through closing
each day.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		RunE:              c.runMenu,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "Path to a config file (default: global then project .agenda/config.yaml)")
	flags.StringVar(&c.dbPath, "db-path", "", "Path to database file")
	flags.StringVar(&c.snapshotPath, "snapshot-path", "", "Path to snapshot file")
	flags.StringVar(&c.owner, "owner", "", "Owner whose tasks are shown")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		c.initCmd(),
		c.addCmd(),
		c.listCmd(),
		c.showCmd(),
		c.lifecycleCmd("done", "Mark a task as done", (*agenda.App).Complete),
		c.lifecycleCmd("not-done", "Mark a task as not done", (*agenda.App).NotDone),
		c.lifecycleCmd("pending", "Undo the last done / not done decision", (*agenda.App).SetPending),
		c.lifecycleCmd("conclude", "Seal a task so it leaves the active list", (*agenda.App).Conclude),
		c.lifecycleCmd("reopen", "Lift the seal of a concluded task", (*agenda.App).Reopen),
		c.delegateCmd(),
		c.deleteCmd(),
		c.forwardCmd(),
		c.bulkCmd(),
		c.statsCmd(),
		c.closeDayCmd(),
		c.reconcileCmd(),
		c.snapshotCmd(),
		c.mcpCmd(),
		c.webCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	var (
		cfg *config.Config
		err error
	)
	if c.cfgFile != "" {
		cfg, err = config.LoadFile(c.cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	if c.snapshotPath != "" {
		cfg.SnapshotPath = c.snapshotPath
	}
	if c.owner != "" {
		cfg.OwnerID = c.owner
	}

	c.cfg = cfg
	c.log = newLogger(cmd.ErrOrStderr(), cfg.Log, c.verbose)
	slog.SetDefault(c.log)
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func (c *cli) rescheduleDefaults() reschedule.Options {
	return reschedule.Options{
		Reason:        c.cfg.Reschedule.Reason,
		KeepOrder:     c.cfg.Reschedule.KeepOrder,
		KeepChecklist: c.cfg.Reschedule.KeepChecklist,
	}
}

// runtime is an opened database with the application on top of it.
type runtime struct {
	db    *db.DB
	store *store.Store
	app   *agenda.App

	stopSnapshot func()
}

func (c *cli) open(ctx context.Context, sink notify.Sink) (*runtime, error) {
	database, err := db.Open(c.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	rt := &runtime{db: database}
	if c.cfg.SnapshotPath != "" {
		rt.stopSnapshot = database.EnableAutoSnapshot(c.cfg.SnapshotPath, c.log)
	}

	rt.store = store.New(database, c.cfg.OwnerID, store.WithLogger(c.log))
	rt.app = agenda.New(rt.store,
		agenda.WithSink(sink),
		agenda.WithLogger(c.log),
		agenda.WithDiscrepancyStore(database),
		agenda.WithRescheduleDefaults(c.rescheduleDefaults()),
	)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.stopSnapshot != nil {
		rt.stopSnapshot()
	}
	rt.store.Close()
	rt.db.Close()
}

// printSink echoes notifications to the command output.
type printSink struct {
	w io.Writer
}

func (p printSink) Success(message string) { fmt.Fprintf(p.w, "✓ %s\n", message) }

func (p printSink) Error(message string) { fmt.Fprintf(p.w, "✗ %s\n", message) }

func (c *cli) cmdSink(cmd *cobra.Command) notify.Sink {
	return notify.Tee{printSink{w: cmd.OutOrStdout()}, notify.Log{Logger: c.log.With("component", "notify")}}
}

// withApp opens the application for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *agenda.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := c.open(ctx, c.cmdSink(cmd))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt.app)
}

// parseDay accepts YYYY-MM-DD, today, tomorrow and yesterday. An empty
// string yields fallback.
func parseDay(s string, today, fallback models.Date) (models.Date, error) {
	switch strings.ToLower(s) {
	case "":
		return fallback, nil
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	case "yesterday":
		return today.AddDays(-1), nil
	}
	return models.ParseDate(s)
}

func (c *cli) runMenu(cmd *cobra.Command, args []string) error {
	selected, err := ui.RunMenu(models.NewDate(time.Now()).String())
	if err != nil {
		return fmt.Errorf("failed to run menu: %w", err)
	}
	if selected == "" {
		return nil
	}

	sub, _, err := cmd.Find([]string{selected})
	if err != nil || sub == cmd {
		return fmt.Errorf("unknown command: %s", selected)
	}
	return sub.RunE(sub, nil)
}
