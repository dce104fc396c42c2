package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coopsched/internal/config"
	"coopsched/internal/sched"
	"coopsched/internal/server"
)

func newServeCmd() *cobra.Command {
	cfg := config.DefaultServerConfig()
	var quietPoll time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler behind the HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.SchedPath = flagConfig
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, quietPoll)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	cmd.Flags().StringVar(&cfg.TracePath, "trace", "", "Write scheduler events as CSV to this file (debug mode only)")
	cmd.Flags().IntVar(&cfg.MaxTracked, "max-tracked", cfg.MaxTracked, "Tasks kept for the tasks endpoint; submissions are refused once this many are unfinished")
	cmd.Flags().DurationVar(&quietPoll, "quiet-idle", 0, "Drain idle work once the scheduler is quiet, polling at this interval (0 = fixed timer)")

	return cmd
}

func runServe(ctx context.Context, cfg config.ServerConfig, quietPoll time.Duration) error {
	opts := []sched.Option{sched.WithLogger(logger)}
	if quietPoll > 0 {
		opts = append(opts, sched.WithQuietIdle(quietPoll))
	}
	sc := sched.New(loadSchedConfig(), opts...)
	if cfg.TracePath != "" {
		if err := sc.EnableCSVTrace(cfg.TracePath); err != nil {
			return err
		}
	}

	srv := server.New(cfg, sc, logger)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sc.Start(gctx); !sched.CleanExit(err) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	logger.Info("server stopped")
	return err
}
