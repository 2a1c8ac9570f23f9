package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/xenophobed/isA-MCP-sub015/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
// This helps troubleshoot connection issues and understand backend behavior.
var serveDebug bool

// serveConfigPath points at the aggregator's YAML config file.
// Missing file falls back to built-in defaults.
var serveConfigPath string

// serveCmd starts the aggregator: it loads configuration, connects to
// every auto-connect backend, starts the health monitor, and serves
// the Facade over MCP until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server aggregator",
	Long: `Starts the aggregator: registers every configured backend,
connects those marked autoConnect, discovers and indexes the tools of
each connected backend, and exposes a single MCP
surface (register_server, list_servers, search_tools, call_tool, ...)
for clients to federate through.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to the aggregator config YAML file")
}
