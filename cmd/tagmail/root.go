package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ajramos/tagmail/internal/config"
	"github.com/ajramos/tagmail/internal/db"
	"github.com/ajramos/tagmail/internal/gmail"
	"github.com/ajramos/tagmail/internal/logging"
	"github.com/ajramos/tagmail/internal/services"
	"github.com/ajramos/tagmail/pkg/auth"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootOptions are the flags every command shares
type rootOptions struct {
	configPath string
	backend    string
	database   string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "tagmail",
		Short:         "Tag-based mail client with conversation threading.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/tagmail/config.yaml)")
	flags.StringVar(&opts.backend, "backend", "", "mail backend: local or gmail")
	flags.StringVar(&opts.database, "db", "", "SQLite database path")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, off")

	addUI(cmd, opts)
	addList(cmd, opts)
	addThread(cmd, opts)
	addCalendar(cmd, opts)
	addTagCommands(cmd, opts)
	addSeed(cmd, opts)
	addQuery(cmd, opts)
	addVersion(cmd)
	return cmd
}

// runtime is everything a command needs, opened from configuration
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   *db.Store
	local   *db.MailStore
	backend services.Backend
	session *services.Session
	queries *services.QueryServiceImpl
	closers []io.Closer
}

// loadConfig applies the command line on top of the loaded configuration
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if o.database != "" {
		cfg.Database = o.database
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open builds the runtime. Interactive runs log to the configured file
// because the UI owns the terminal; the rest log to stderr.
func (o *rootOptions) open(ctx context.Context, cmd *cobra.Command, interactive bool) (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg}

	logCfg := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cmd.ErrOrStderr()}
	if interactive {
		logCfg.File = cfg.Logging.File
	}
	logger, closer, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	rt.logger = logger
	rt.closers = append(rt.closers, closer)

	// The database holds collapse state and saved queries for every backend
	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	rt.store = store
	rt.closers = append(rt.closers, store)

	rt.queries = services.NewQueryService(db.NewQueryStore(store))
	rt.queries.SetLogger(logging.Component(logger, "queries"))

	switch cfg.Backend {
	case config.BackendGmail:
		svc, err := auth.NewGmailService(ctx, cfg.Credentials, cfg.Token)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to Gmail: %w", err)
		}
		backend := gmail.NewBackend(gmail.NewClient(svc))
		backend.SetLogger(logging.Component(logger, "gmail"))
		backend.SetMaxResults(int64(cfg.MaxResults))
		backend.SetConcurrency(cfg.Concurrency)
		rt.backend = backend
	default:
		local := db.NewMailStore(store)
		local.SetLogger(logging.Component(logger, "mailstore"))
		local.SetMaxResults(cfg.MaxResults)
		rt.local = local
		rt.backend = local
	}

	collapse := db.NewCollapseStore(store)
	rt.session = services.NewSession(rt.backend, services.SessionOptions{
		Mode:          services.ParseMode(cfg.DefaultMode),
		MessageTTL:    cfg.MessageCacheTTL,
		CollapseStore: collapse,
		Logger:        &logger,
	})
	return rt, nil
}

// refresh loads query into the session, ordering by due date for the todo
// query or when forced
func (rt *runtime) refresh(ctx context.Context, query string, byDue bool) error {
	if strings.TrimSpace(query) == "" {
		query = rt.cfg.DefaultQuery
	}
	ordering := services.OrderDefault
	if byDue || rt.cfg.IsTodoQuery(query) {
		ordering = services.OrderDue
	}
	return rt.session.Refresh(ctx, query, ordering)
}

// requireLocal fails for commands that only make sense on the local store
func (rt *runtime) requireLocal(what string) error {
	if rt.local == nil {
		return fmt.Errorf("%s needs the local backend", what)
	}
	return nil
}

// Close releases everything in reverse order of opening
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
