package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/conorfennell/tarottimer/internal/clock"
	"github.com/conorfennell/tarottimer/internal/config"
	"github.com/conorfennell/tarottimer/internal/deck"
	"github.com/conorfennell/tarottimer/internal/decksource"
	"github.com/conorfennell/tarottimer/internal/locale"
	"github.com/conorfennell/tarottimer/internal/logging"
	"github.com/conorfennell/tarottimer/internal/rollover"
	"github.com/conorfennell/tarottimer/internal/storage"
)

// commandContext carries overrides shared by every command. Tests replace
// the clock; production leaves it nil and gets the system clock in the
// configured timezone.
type commandContext struct {
	clock clock.Clock
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// app is the wired application for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *storage.DB
	table   *deck.Table
	clock   clock.Clock
	locales *locale.Matcher
	session *rollover.Reconciler
}

func (a *app) Close() error {
	return a.db.Close()
}

// locale returns the configured card-name locale resolved against the deck.
func (a *app) locale() string {
	return a.locales.Match(a.cfg.Locale)
}

// open loads configuration and wires storage, the deck and a started
// reconciler reporting to presenter.
func (c *commandContext) open(cmd *cobra.Command, presenter rollover.Presenter) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return c.openWith(cmd, cfg, presenter)
}

// openWith is open over an already loaded configuration.
func (c *commandContext) openWith(cmd *cobra.Command, cfg *config.Config, presenter rollover.Presenter) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	clk := c.clock
	if clk == nil {
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		clk = clock.NewSystem(loc)
	}

	table, err := decksource.Load(ctx, decksource.Options{
		Source:   cfg.Deck.Source,
		ReposDir: cfg.Deck.ReposDir,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.RecordSource(ctx, cfg.Deck.Source, table.Hash(), table.Len()); err != nil {
		logger.Warn("failed to record deck source", "error", err)
	}

	presenters := rollover.Presenters{rollover.LogPresenter{Logger: logger}}
	if presenter != nil {
		presenters = append(presenters, presenter)
	}
	session := rollover.New(db, clk, table, presenters, logger, rollover.Config{
		AutoDraw:  cfg.Reconcile.AutoDraw,
		OpTimeout: cfg.Reconcile.OpTimeout,
	})
	if err := session.Start(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		table:   table,
		clock:   clk,
		locales: locale.ForCards(table.Cards()),
		session: session,
	}, nil
}
