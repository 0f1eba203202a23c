package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/abelbrown/rangefilter/internal/config"
	"github.com/abelbrown/rangefilter/internal/engine"
	"github.com/abelbrown/rangefilter/internal/logging"
	"github.com/abelbrown/rangefilter/internal/otel"
	"github.com/abelbrown/rangefilter/internal/session"
	"github.com/abelbrown/rangefilter/internal/store"
	"github.com/abelbrown/rangefilter/internal/visibility"
)

var (
	flagConfig   string
	flagDB       string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "rangefilter",
	Short:         "Filter journal entries by calendar date range",
	Long:          `rangefilter shows journal entries whose date falls inside a range, applying the filter in small chunks so the list stays responsive.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.rangefilter/config.json)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(tuiCmd, applyCmd, clearCmd, sessionCmd, statsCmd, seedCmd, eventsCmd)
}

// env is everything a subcommand needs, opened from config.
type env struct {
	cfg    *config.Config
	store  *store.Store
	events *otel.Logger
	ring   *otel.RingBuffer

	closeEvents func() error
}

// loadConfig reads the config file named by --config or the default.
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFrom(flagConfig)
	}
	return config.Load()
}

// openEnv loads config, initializes logging and opens the store.
func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir(), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	level, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if err := logging.Init(cfg.LogDir(), level); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	}

	dbPath := cfg.DBPath()
	if flagDB != "" {
		dbPath = flagDB
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	e := &env{cfg: cfg, store: st, ring: otel.NewRingBuffer(cfg.Events.RingSize), closeEvents: func() error { return nil }}
	if cfg.Events.Enabled {
		f, err := os.OpenFile(cfg.EventLogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			logging.Warn("Event log disabled", "path", cfg.EventLogPath(), "error", err)
			e.events = otel.NewNullLogger()
		} else {
			e.events = otel.NewLogger(f)
			e.closeEvents = f.Close
		}
	} else {
		e.events = otel.NewNullLogger()
	}
	e.events.SetRingBuffer(e.ring)
	e.events.Info(otel.KindStartup, "main", "rangefilter "+os.Args[0])
	return e, nil
}

// Close flushes events and closes the store and log file.
func (e *env) Close() {
	e.events.Info(otel.KindShutdown, "main", "")
	e.events.Close()
	if err := e.closeEvents(); err != nil {
		logging.Warn("Failed to close event log", "error", err)
	}
	if err := e.store.Close(); err != nil {
		logging.Warn("Failed to close database", "error", err)
	}
	logging.Close()
}

// newEngine fills in the store-bound collaborators and tuning from config.
// Callers set Notifier, Aggregates, Sinks and Yielder.
func (e *env) newEngine(cfg engine.Config) *engine.Engine {
	cfg.Planner = visibility.NewPlanner(visibility.DisplayDateRepairer{})
	cfg.Sessions = e.sessionStore()
	cfg.Repairs = e.store
	cfg.Events = e.events
	cfg.ChunkSize = e.cfg.Filter.ChunkSize
	cfg.InlineThreshold = e.cfg.Filter.InlineThreshold
	return engine.New(cfg)
}

// sessionStore returns the session store over the configured backend.
func (e *env) sessionStore() *session.Store {
	var kv session.KV = e.store
	if e.cfg.Session.Backend == config.SessionFile {
		kv = session.FileKV{Dir: e.cfg.SessionDir()}
	}
	return session.NewStore(kv, e.events)
}

// withEnv wraps a subcommand body with env setup and teardown.
func withEnv(run func(ctx context.Context, cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		return run(cmd.Context(), cmd, args, e)
	}
}
