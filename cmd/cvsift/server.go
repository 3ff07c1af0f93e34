package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/cvsift/internal/api"
	"github.com/kalambet/cvsift/internal/ats"
	"github.com/kalambet/cvsift/internal/bus"
	"github.com/kalambet/cvsift/internal/classifier"
	"github.com/kalambet/cvsift/internal/config"
	"github.com/kalambet/cvsift/internal/extract"
	"github.com/kalambet/cvsift/internal/llm"
	"github.com/kalambet/cvsift/internal/manifest"
	"github.com/kalambet/cvsift/internal/pipeline"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cvsift server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running cvsift server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cvsift system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(cfg config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Manifest.Path), "cvsift.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "cvsift version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to double-start: probe the health endpoint before claiming the
	// PID file.
	pidPath := pidFilePath(cfg)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("cvsift is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("cvsift is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening manifest store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing manifest store: %v\n", err)
		}
	}()

	chat, err := buildChatter(ctx, cfg)
	if err != nil {
		return err
	}
	decider := classifier.New(chat, classifier.Config{
		StrictMode:     cfg.Classifier.StrictMode,
		TieringEnabled: cfg.Classifier.TieringEnabled,
		MaxResumeChars: cfg.Classifier.MaxResumeChars,
	})

	mover, err := buildMover(cfg)
	if err != nil {
		return err
	}

	b := bus.New()
	svc := pipeline.New(store, b, &extract.PDF{}, decider, mover, pipeline.Options{
		Dir:            cfg.Watch.Dir,
		Condition:      cfg.Classifier.Condition,
		Quiescence:     cfg.QuiescenceDuration(),
		MaxConcurrency: cfg.Queue.MaxConcurrency,
		MaxAttempts:    cfg.Queue.MaxAttempts,
	})
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}
	defer svc.Shutdown()

	handler := api.NewHandler(api.Deps{
		Pipeline: svc,
		Events:   b,
		Token:    cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server over stdio, alongside the HTTP API.
	stdioSrv := server.NewStdioServer(api.NewMCPServer(svc))
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "cvsift listening on %s, watching %s\n", addr, cfg.Watch.Dir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg config.Config) (manifest.Store, error) {
	switch cfg.Manifest.Backend {
	case "sqlite":
		return manifest.OpenSQLite(filepath.Dir(cfg.Manifest.Path))
	default:
		return manifest.OpenFile(cfg.Manifest.Path)
	}
}

func buildChatter(ctx context.Context, cfg config.Config) (llm.Chatter, error) {
	switch cfg.Classifier.Provider {
	case "gemini":
		client, err := llm.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return llm.WithRetry(client, 0, 0, 0), nil
	default:
		client := llm.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.Model)
		if !client.IsRunning(ctx) {
			return nil, fmt.Errorf("ollama is not reachable at %s: start it or switch classifier.provider", cfg.Ollama.BaseURL)
		}
		return llm.WithRetry(client, 0, 0, 0), nil
	}
}

// buildMover returns nil when Ashby is not configured; archival is then
// skipped.
func buildMover(cfg config.Config) (ats.Mover, error) {
	if cfg.Ashby.APIKey == "" {
		slog.Info("ashby not configured, archival disabled")
		return nil, nil
	}
	stageID, err := uuid.Parse(cfg.Ashby.ArchiveStageID)
	if err != nil {
		return nil, fmt.Errorf("invalid ashby.archive_stage_id: %w", err)
	}
	reasonID, err := uuid.Parse(cfg.Ashby.ArchiveReasonID)
	if err != nil {
		return nil, fmt.Errorf("invalid ashby.archive_reason_id: %w", err)
	}
	return ats.NewClient(cfg.Ashby.APIKey, stageID, reasonID), nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("cvsift is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop cvsift (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to cvsift (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.Classifier.Provider == "gemini" {
		printStatus("Classifier", "gemini (%s)", cfg.Gemini.Model)
	} else {
		ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		}
		printStatus("Classifier", "ollama (%s)", cfg.Ollama.Model)
	}

	if running {
		if entries, err := fetchResumes(); err == nil {
			counts := make(map[string]int)
			for _, e := range entries {
				label := string(e.Label)
				if e.Label.IsReviewed() {
					label = "reviewed"
				}
				counts[label]++
			}
			printStatus("Resumes", "%d tracked", len(entries))
			for _, label := range []string{"pending", "in_progress", "passed", "exceeds", "elite", "rejected", "failed", "reviewed"} {
				if n := counts[label]; n > 0 {
					printStatus("  "+label, "%d", n)
				}
			}
		}
	}

	printStatus("Watch dir", "%s", cfg.Watch.Dir)
	printStatus("Manifest", "%s (%s)", cfg.Manifest.Path, cfg.Manifest.Backend)
	return nil
}
