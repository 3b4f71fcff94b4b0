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

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/tarottimer/internal/config"
	"github.com/conorfennell/tarottimer/internal/lifecycle"
	"github.com/conorfennell/tarottimer/internal/web"
)

const shutdownTimeout = 5 * time.Second

// rolloverPriority runs date reconciliation ahead of any other foreground
// handler so later handlers read the current day.
const rolloverPriority = 10

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the midnight rollover driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(runCtx)

			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			// The lock comes first: starting the session may already write
			// today's record when auto-draw is on.
			lock := flock.New(cfg.DBPath + ".lock")
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another tarottimer server is already using " + cfg.DBPath)
			}
			defer func() { _ = lock.Unlock() }()

			presenter := web.NewPresenter(nil)
			a, err := ctx.openWith(cmd, cfg, presenter)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(runCtx, a, presenter)
		},
	}
}

func serve(ctx context.Context, a *app, presenter *web.Presenter) error {
	coord := lifecycle.New(lifecycle.Options{
		HandlerTimeout: a.cfg.Lifecycle.HandlerTimeout,
		Logger:         a.logger,
	})
	defer coord.Close()
	detach := a.session.Attach(coord, rolloverPriority, a.cfg.Lifecycle.ResumeDebounce)
	defer detach()

	handler := web.NewServer(web.Options{
		Session:   a.session,
		History:   a.db,
		Lifecycle: coord,
		Presenter: presenter,
		Locales:   a.locales,
		Locale:    a.cfg.Locale,
		Clock:     a.clock,
		Reminder:  web.Reminder{Hour: a.cfg.Reminder.Hour, Quiet: a.cfg.Reminder.QuietHours},
		Logger:    a.logger,
	})
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.session.Run(gctx, a.cfg.Reconcile.TickInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
