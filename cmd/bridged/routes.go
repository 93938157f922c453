package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostbridge/wasm-bridge/config"
	"github.com/hostbridge/wasm-bridge/reqctx"
	"github.com/hostbridge/wasm-bridge/server"
)

var routesCmd = &cobra.Command{
	Use:   "routes <app.wasm>",
	Short: "Run the guest entry point and print its registered routes",
	Long: `Boot the guest once, collect everything it registers, and print the
frozen route table. With -i the table opens in an interactive inspector
that dispatches synthetic requests through the real pipeline.

Plain mode boots without a database so listing routes has no side effects;
the inspector connects DATABASE_URL so handlers behave as they would under
serve.`,
	Args: cobra.ExactArgs(1),
	Run:  runRoutes,
}

func init() {
	routesCmd.Flags().BoolP("interactive", "i", false, "Open the interactive route inspector")
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) {
	interactive, _ := cmd.Flags().GetBool("interactive")
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	// Development logging is useful when a boot misbehaves, but it would
	// tear up the inspector's screen.
	if cfg.Debug && !interactive {
		if _, err := setupLogging(true); err != nil {
			fatal(err)
		}
	}

	var db *sql.DB
	if interactive {
		if db, err = openDatabase(ctx, cfg); err != nil {
			fatal(err)
		}
		if db != nil {
			defer db.Close()
		}
	}

	deps := buildDeps(cfg, db)
	eng, module, err := loadApp(ctx, args[0], deps)
	if err != nil {
		fatal(err)
	}
	defer eng.Close(context.Background())

	srv, err := server.New(ctx, module, deps, server.Config{
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

	if interactive {
		if err := runInspector(args[0], srv); err != nil {
			fatal(err)
		}
		return
	}

	routes := srv.Routes()
	fmt.Printf("Module: %s\n", args[0])
	if len(routes) == 0 {
		fmt.Println("No routes registered.")
		return
	}
	fmt.Printf("Routes: %d\n", len(routes))
	for _, rt := range routes {
		line := fmt.Sprintf("  %-7s %-28s handler %d", rt.Method, rt.Pattern, rt.Handler)
		if rt.Protected {
			line += "  protected"
			if rt.Role != "" {
				line += " role=" + rt.Role
			}
		}
		fmt.Println(line)
	}
	if port := srv.GuestPort(); port != 0 {
		fmt.Printf("Guest port: %d (informational; serve binds HTTP_ADDR)\n", port)
	}
}
