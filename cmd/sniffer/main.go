package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/streamlens/streamlens/internal/api"
	"github.com/streamlens/streamlens/internal/browser"
	"github.com/streamlens/streamlens/internal/capture"
	"github.com/streamlens/streamlens/internal/cdp"
	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/controller"
	"github.com/streamlens/streamlens/internal/domscan"
	"github.com/streamlens/streamlens/internal/netutil"
	"github.com/streamlens/streamlens/internal/notify"
	"github.com/streamlens/streamlens/internal/ruleset"
	"github.com/streamlens/streamlens/internal/session"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		slog.Debug("log directory creation failed", "error", err)
	}

	logWriter := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting media stream sniffer")
	slog.Info("Configuration loaded",
		"cdp_address", cfg.CDPAddress,
		"cdp_port", cfg.CDPPort,
		"tab_url_filter", cfg.TabURLFilter,
		"reload_on_attach", cfg.ReloadOnAttach,
		"max_streams_per_session", cfg.MaxStreamsPerSession,
		"min_stream_bytes", cfg.MinStreamBytes,
		"api_addr", cfg.APIAddr(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.BrowserStartURL,
			ProfileDir: cfg.BrowserProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("Failed to launch browser", "error", err)
			os.Exit(1)
		}
		if launcher.Running() {
			defer launcher.Stop()
		}
	}

	broker := notify.NewBroker()
	rules := ruleset.New(int64(cfg.MinStreamBytes))
	sessions := session.NewManager(rules, cfg.MaxStreamsPerSession, broker)
	scanner := domscan.NewScanner(cfg.MinVideoArea)

	responseCapture := capture.NewResponseCapture(sessions)
	defer responseCapture.Close()

	cdpClient := cdp.NewClient(cfg, responseCapture, sessions, scanner)
	if err := cdpClient.Connect(ctx); err != nil {
		slog.Error("Failed to connect to browser", "error", err)
		slog.Info("Make sure Chromium is running with remote debugging enabled")
		os.Exit(1)
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Warn("CDP close failed", "error", err)
		}
	}()

	apiAddr, err := netutil.SelectBindAddr(cfg.APIHost, cfg.APIPort, 2)
	if err != nil {
		slog.Error("No usable API bind address", "error", err)
		os.Exit(1)
	}

	svc := controller.NewService(sessions, cdpClient)
	srv := &http.Server{
		Addr:    apiAddr,
		Handler: api.NewServer(svc, broker),
	}

	go func() {
		slog.Info("API server listening", "addr", apiAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	slog.Info("Sniffer running", "tabs", cdpClient.GetTabCount())
	slog.Info("Press Ctrl+C to stop")

	<-sigCh
	slog.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API shutdown failed", "error", err)
	}

	slog.Info("Sniffer stopped")
}
