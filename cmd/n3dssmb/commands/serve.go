package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/JohnDeved/n3ds-smb/internal/logger"
	"github.com/JohnDeved/n3ds-smb/internal/webdavbridge"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Locate the console and serve its microSD card over WebDAV",
	Long: `serve runs the full pipeline: locate a 3DS on the network (cache,
WS-Discovery, then an interactive prompt), connect over SMB1, and expose
the share as a WebDAV server until interrupted.

Examples:
  # Serve with defaults from config
  n3dssmb serve

  # Serve read-only on a custom port
  n3dssmb serve --readonly --port 8081`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "bind host (default: from config)")
	serveCmd.Flags().Int("port", 0, "bind port (default: from config)")
	serveCmd.Flags().Bool("readonly", false, "serve the share read-only")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.WebDAV.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.WebDAV.Port = port
	}
	if readonly, _ := cmd.Flags().GetBool("readonly"); readonly {
		cfg.WebDAV.ReadOnly = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := connectTarget(ctx, cfg)
	if err != nil {
		return err
	}

	var metrics *webdavbridge.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = webdavbridge.NewMetrics(reg)
		go serveMetrics(cfg.Metrics.Port, reg)
	}

	opts := webdavbridge.ServerOptions{
		Addr:       fmt.Sprintf("%s:%d", cfg.WebDAV.Host, cfg.WebDAV.Port),
		ReadOnly:   cfg.WebDAV.ReadOnly,
		Metrics:    metrics,
		Username:   cfg.WebDAV.Username,
		Password:   cfg.WebDAV.Password,
		NumWorkers: cfg.WebDAV.NumWorkers,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping webdav bridge")
		cancel()
	}()

	return webdavbridge.Serve(ctx, client, opts)
}

func serveMetrics(port int, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec // internal metrics endpoint, no external exposure expected
		logger.Error("metrics server stopped", "error", err)
	}
}
