package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the find_matches tool over MCP stdio",
	Run: func(_ *cobra.Command, _ []string) {
		// stdout belongs to the protocol.
		logger := newLogger("stderr")
		defer logger.Sync() //nolint:errcheck

		config, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, config, logger, buildOptions{})
		if err != nil {
			logger.Fatal("building the pipeline", zap.Error(err))
		}
		defer a.Close()

		srv, err := mcpserver.New(a.pipeline, version, logger)
		if err != nil {
			logger.Fatal("creating the mcp server", zap.Error(err))
		}
		if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			logger.Error("mcp server stopped with error", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
