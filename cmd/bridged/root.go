package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hostbridge/wasm-bridge/config"
	"github.com/hostbridge/wasm-bridge/engine"
	"github.com/hostbridge/wasm-bridge/hostapi"
	"github.com/hostbridge/wasm-bridge/pool"
	"github.com/hostbridge/wasm-bridge/registry"
	"github.com/hostbridge/wasm-bridge/server"
	"github.com/hostbridge/wasm-bridge/session"
)

var rootCmd = &cobra.Command{
	Use:   "bridged",
	Short: "HTTP server runtime for sandboxed WASM applications",
	Long: `bridged - Serve HTTP applications compiled to WebAssembly.

A guest module registers its routes through the host bridge at boot; bridged
freezes the route table and dispatches every inbound request to a fresh
guest instance from a bounded pool. Guests reach the outside world only
through the bridge capabilities: database, sessions, outbound HTTP, files.

Configuration comes from the environment (HTTP_ADDR, DATABASE_URL,
POOL_SIZE, ...); every knob has a local-development default.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fatal prints err the way every subcommand reports failure and exits.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// setupLogging builds the process logger and installs named children into
// every bridge package. Call once, before any engine work.
func setupLogging(debug bool) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	engine.SetLogger(log.Named("engine"))
	hostapi.SetLogger(log.Named("hostapi"))
	pool.SetLogger(log.Named("pool"))
	server.SetLogger(log.Named("server"))
	return log, nil
}

// openDatabase connects the configured SQLite database, or returns nil when
// none is configured. The guest's database capabilities degrade to error
// envelopes without one.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxConns)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func buildDeps(cfg *config.Config, db *sql.DB) *hostapi.Deps {
	return &hostapi.Deps{
		Sessions:    session.NewStore(cfg.SessionTTL),
		Roles:       session.NewRoleTable(),
		DB:          db,
		FilesRoot:   cfg.FilesRoot,
		TokenSecret: cfg.TokenSecret,
	}
}

// loadApp brings up an engine with the full dispatch surface bound over
// deps and loads the guest module at path. The caller owns the returned
// engine and closes it when done.
func loadApp(ctx context.Context, path string, deps *hostapi.Deps) (*engine.WazeroEngine, *engine.WazeroModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read module: %w", err)
	}

	cat, err := registry.Default()
	if err != nil {
		return nil, nil, fmt.Errorf("load registry: %w", err)
	}
	funcs, err := hostapi.Bind(cat, deps)
	if err != nil {
		return nil, nil, fmt.Errorf("bind host surface: %w", err)
	}

	eng, err := engine.NewWazeroEngine(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create engine: %w", err)
	}
	if err := eng.RegisterHost(ctx, funcs); err != nil {
		eng.Close(ctx)
		return nil, nil, fmt.Errorf("register host surface: %w", err)
	}
	module, err := eng.LoadModule(ctx, data)
	if err != nil {
		eng.Close(ctx)
		return nil, nil, fmt.Errorf("load module: %w", err)
	}
	return eng, module, nil
}
