package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/ikimatch/internal/server"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the match API over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "port to listen on (overrides server.port)")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serve() {
	logger := newLogger("")
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the ikimatch api", zap.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, config, logger, buildOptions{})
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}
	defer a.Close()

	srv, err := server.New(a.pipeline, logger, server.Config{
		Host:           config.Server.Host,
		Port:           config.Server.Port,
		AllowOrigins:   config.Server.AllowOrigins,
		RequestTimeout: config.Server.RequestTimeout,
		Checks:         a.checks,
	})
	if err != nil {
		logger.Fatal("creating the http server", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
