package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/internal/directory"
	"github.com/heuritech/gitlab-slack-notifier/internal/server"
	"github.com/spf13/cobra"
)

var servePort int
var serveLogDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for GitLab webhooks and notify people on Slack",
	Long: `Starts the webhook listener. Point a GitLab project or group webhook at
http://<host>:<port>/ with pipeline, comment and merge request events enabled,
and set the same secret token as server.webhook_secret.

The email to Slack directory is loaded at startup and refreshed on
directory.refresh_schedule. When Slack cannot be reached the last stored
snapshot is used.

Routes:
  POST /         GitLab webhook
  GET  /         {"message": "dummy"}
  GET  /health   liveness and directory status
  GET  /events   SSE stream of delivery outcomes`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port to listen on (default 5000, overrides config)")
	serveCmd.Flags().StringVar(&serveLogDir, "log-dir", "logs",
		"directory to write notifier logs for later inspection")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logFilePath, closeLog, err := setupFileLogger(serveLogDir)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer closeLog()

	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = server.DefaultPort
	}
	if err := directory.ValidateSchedule(cfg.Directory.RefreshSchedule); err != nil {
		return fmt.Errorf("invalid directory.refresh_schedule %q: %w", cfg.Directory.RefreshSchedule, err)
	}

	broadcaster := server.NewBroadcaster()
	eng, err := newEngine(ctx, cfg, broadcaster.Publish)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.refresher.Start(cfg.Directory.RefreshSchedule); err != nil {
		return err
	}

	fmt.Printf("gitlab-slack-notifier starting\n")
	fmt.Printf("  GitLab     : %s\n", cfg.GitLab.BaseURL)
	fmt.Printf("  Directory  : %s (%d entries)\n", eng.source.Name(), eng.dir.Len())
	fmt.Printf("  Fallback   : %s\n", cfg.Slack.FallbackChannel)
	if cfg.Debug {
		fmt.Printf("  Debug      : mirroring to %s\n", cfg.Slack.DebugChannel)
	}
	fmt.Printf("  Webhook    : http://0.0.0.0:%d/\n", cfg.Server.Port)
	fmt.Printf("  Events     : http://0.0.0.0:%d/events\n", cfg.Server.Port)
	fmt.Printf("  Logs       : %s\n\n", logFilePath)
	if cfg.Server.WebhookSecret == "" {
		fmt.Println(warnStyle.Render("No webhook secret configured: every request is accepted."))
	}
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	slog.Info("logger initialised", "file", logFilePath)
	srv := server.New(cfg.Server, eng.dispatcher, broadcaster)
	srv.SetStatusFunc(func() map[string]any {
		last, lastErr := eng.refresher.Status()
		status := map[string]any{
			"directory_source":  eng.source.Name(),
			"directory_entries": eng.dir.Len(),
		}
		if !last.IsZero() {
			status["directory_refreshed_at"] = last.Format(time.RFC3339)
		}
		if next := eng.refresher.Next(); !next.IsZero() {
			status["directory_next_refresh"] = next.Format(time.RFC3339)
		}
		if lastErr != nil {
			status["directory_error"] = lastErr.Error()
		}
		return status
	})
	return srv.Start(ctx)
}

func setupFileLogger(logDir string) (string, func(), error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	ts := time.Now().UTC().Format("20060102-150405")
	runLogPath := filepath.Join(logDir, fmt.Sprintf("notifier-%s.log", ts))
	runFile, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening run log file: %w", err)
	}

	latestPath := filepath.Join(logDir, "notifier.log")
	latestFile, err := os.OpenFile(latestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = runFile.Close()
		return "", nil, fmt.Errorf("opening latest log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, runFile, latestFile), &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(level)

	cleanup := func() {
		_ = latestFile.Close()
		_ = runFile.Close()
	}
	return runLogPath, cleanup, nil
}
