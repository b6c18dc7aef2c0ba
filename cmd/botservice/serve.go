package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jagmitg/botservice/pkg/config"
	"github.com/jagmitg/botservice/runtime/logger"
	botmetrics "github.com/jagmitg/botservice/runtime/metrics/prometheus"
	"github.com/jagmitg/botservice/runtime/version"
	"github.com/jagmitg/botservice/server"
)

const (
	flagAddr         = "addr"
	flagShutdownWait = "shutdown-timeout"

	defaultShutdownWait = 15 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bot over HTTP and websockets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if addr := v.GetString(flagAddr); addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, v.GetDuration(flagShutdownWait))
		},
	}
	cmd.Flags().String(flagAddr, "", "Listen address, overrides the manifest")
	cmd.Flags().Duration(flagShutdownWait, defaultShutdownWait, "Grace period for in-flight turns on shutdown")
	_ = v.BindPFlag(flagAddr, cmd.Flags().Lookup(flagAddr))
	_ = v.BindPFlag(flagShutdownWait, cmd.Flags().Lookup(flagShutdownWait))
	return cmd
}

// serve runs the bot server and the metrics exporter until ctx is done or
// one of them fails, then shuts both down.
func serve(ctx context.Context, cfg *config.BotConfig, shutdownWait time.Duration) error {
	logger.Info("botservice starting", version.Get().LogAttrs()...)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithAddr(cfg.Server.Addr),
		server.WithReadTimeout(cfg.Server.ReadTimeout.Std()),
		server.WithWriteTimeout(cfg.Server.WriteTimeout.Std()),
		server.WithMaxBodySize(cfg.Server.MaxBodyBytes),
	}
	if rl := cfg.Server.RateLimit; rl.Enabled() {
		opts = append(opts, server.WithRateLimit(rl.RequestsPerSecond, rl.Burst))
	}
	srv, err := server.New(a.bot, opts...)
	if err != nil {
		_ = a.close(ctx)
		return err
	}

	var exporter *botmetrics.Exporter
	if cfg.Metrics.IsEnabled() {
		exporter = botmetrics.NewExporter(cfg.Metrics.Addr, botmetrics.WithHealthCheck("stateStore", a.healthCheck))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if exporter != nil {
		g.Go(func() error {
			logger.Info("metrics listening", "addr", exporter.Addr())
			return exporter.Start()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		var errs []error
		errs = append(errs, srv.Shutdown(sctx))
		if exporter != nil {
			errs = append(errs, exporter.Shutdown(sctx))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()

	cctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if cerr := a.close(cctx); cerr != nil {
		logger.Warn("cleanup failed", "error", cerr)
	}
	return err
}
