package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/trackscope/internal/app"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Starts the TrackScope server. Scans are streamed over SSE at /api/analyze/stream
and over WebSocket at /ws/analyze.`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "Server port (overrides config)")
	cmd.Flags().String("host", "", "Server host (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Startup sequence: config -> flag overrides -> logger -> banner
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	common.ApplyFlagOverrides(config, port, host)

	logger := common.SetupLogger(config)
	common.InstallCrashHandler("")
	common.PrintBanner(config)

	logger.Debug().
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Str("provider", string(config.LLM.DefaultProvider)).
		Str("job_timeout", config.Browser.JobTimeout).
		Msg("Resolved configuration (sanitized)")

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	srv := server.New(application)

	errCh := make(chan error, 1)
	common.SafeGo(logger, "http-server", func() {
		errCh <- srv.Start()
	})

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
	return nil
}
