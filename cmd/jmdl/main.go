// Command jmdl runs the comic downloader as an HTTP service: it wires
// together session management, bounded-concurrency page downloads, PDF
// assembly, and the HTTP façade into a single long-running process.
// Grounded on the teacher's main.go for the overall constructor-wiring
// shape, translated from a bot-platform plugin entrypoint into a
// spf13/cobra CLI with a graceful-shutdown HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jm-archive/jm-downloader/internal/comicservice"
	"github.com/jm-archive/jm-downloader/internal/config"
	"github.com/jm-archive/jm-downloader/internal/downloader"
	"github.com/jm-archive/jm-downloader/internal/expiry"
	"github.com/jm-archive/jm-downloader/internal/httpserver"
	"github.com/jm-archive/jm-downloader/internal/jmapi"
	"github.com/jm-archive/jm-downloader/internal/metrics"
	"github.com/jm-archive/jm-downloader/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr         string
		downloadDir  string
		enableMetric bool
	)

	cmd := &cobra.Command{
		Use:   "jmdl",
		Short: "Scrambled-image comic downloader and post-processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr, downloadDir, enableMetric)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&downloadDir, "download-dir", "./download", "directory downloaded pages and PDFs are written to")
	cmd.Flags().BoolVar(&enableMetric, "metrics", false, "expose a Prometheus /metrics endpoint")

	return cmd
}

func run(addr, downloadDir string, enableMetrics bool) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir %s: %w", downloadDir, err)
	}

	client := jmapi.New(cfg.APIDomain)
	sess, err := session.New(client, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("establish session: %w", err)
	}

	dl := downloader.New(client, cfg.ImageDomain, cfg.ImgConcurrency, downloadDir, logger)
	exp := expiry.New(logger)
	svc := comicservice.New(sess, dl, exp, downloadDir, logger)

	if enableMetrics {
		metrics.Register()
	}

	handler := httpserver.New(svc, logger, httpserver.Options{
		DownloadDir:   downloadDir,
		EnableMetrics: enableMetrics,
	})

	srv := &http.Server{Addr: addr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(os.Getenv("JM_LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
