package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	monitor "github.com/sawpanic/walletfeatures/internal/interfaces/http"
	"github.com/sawpanic/walletfeatures/internal/telemetry/metrics"
)

var flagMonitorAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Serve /health and /metrics until interrupted",
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&flagMonitorAddr, "addr", "127.0.0.1:8080", "listen address")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	metrics.Initialize()
	srv := monitor.NewServer(monitor.DefaultServerConfig(flagMonitorAddr, version))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down monitor server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
