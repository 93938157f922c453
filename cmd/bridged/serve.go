package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hostbridge/wasm-bridge/config"
	"github.com/hostbridge/wasm-bridge/reqctx"
	"github.com/hostbridge/wasm-bridge/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve <app.wasm>",
	Short: "Serve a guest application over HTTP",
	Long: `Load a guest module, run its entry point to collect routes, and serve
them until interrupted. SIGINT and SIGTERM drain in-flight requests before
the process exits.`,
	Args: cobra.ExactArgs(1),
	Run:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// shutdownTimeout bounds how long in-flight requests get to finish once a
// stop signal arrives.
const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	log, err := setupLogging(cfg.Debug)
	if err != nil {
		fatal(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	if db != nil {
		defer db.Close()
	}

	deps := buildDeps(cfg, db)
	eng, module, err := loadApp(ctx, args[0], deps)
	if err != nil {
		fatal(err)
	}
	defer eng.Close(context.Background())

	srv, err := server.New(ctx, module, deps, server.Config{
		Addr:         cfg.Addr,
		MaxBodyBytes: cfg.MaxBodyBytes,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		Client: reqctx.ClientConfig{
			TimeoutMS:    cfg.HTTPTimeout.Milliseconds(),
			MaxRedirects: int64(cfg.HTTPMaxRedirects),
			UserAgent:    cfg.HTTPUserAgent,
		},
	})
	if err != nil {
		fatal(err)
	}

	log.Info("application loaded",
		zap.String("module", args[0]),
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.SafeDatabaseURL()),
		zap.Int("routes", len(srv.Routes())),
		zap.Int("pool_size", cfg.PoolSize))
	if port := srv.GuestPort(); port != 0 {
		// The configured address wins over whatever the guest asked for.
		log.Info("guest requested port", zap.Int64("port", port))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		log.Info("signal received, draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
		<-errCh
	case err := <-errCh:
		if err != nil {
			fatal(err)
		}
	}
	log.Info("stopped")
}
