package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/docfold/docfold-agent/internal/api"
	"github.com/docfold/docfold-agent/internal/config"
	"github.com/docfold/docfold-agent/internal/docstore"
	"github.com/docfold/docfold-agent/internal/editlog"
	"github.com/docfold/docfold-agent/internal/editor"
	"github.com/docfold/docfold-agent/internal/llm"
	"github.com/docfold/docfold-agent/internal/lockfile"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
	// BuildTime is set via -ldflags at build time.
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "version":
		fmt.Printf("docfold-agent %s (%s) %s\n", Version, Commit, BuildTime)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `docfold-agent

Usage:
  docfold-agent run [flags]
  docfold-agent version

Commands:
  run         Run the local document edit agent and its HTTP API.
  version     Print build information.

`)
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	listen := fs.String("listen", "", "Listen address (overrides config)")
	stateDir := fs.String("state-dir", "", "State directory (overrides config)")
	logFormat := fs.String("log-format", "json", "Log format: json|text")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	_ = fs.Parse(args)

	log := newLogger(*logFormat, *logLevel)

	cfg, err := config.Load(filepath.Clean(*cfgPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(*listen) != "" {
		cfg.ListenAddr = *listen
	}
	if strings.TrimSpace(*stateDir) != "" {
		cfg.StateDir = *stateDir
	}

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create state dir: %v\n", err)
		os.Exit(1)
	}

	// One agent per state dir.
	lock, err := lockfile.Acquire(filepath.Join(cfg.StateDir, "agent.lock"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to acquire lock: %v\n", err)
		os.Exit(1)
	}
	defer lock.Release()

	store, err := docstore.Open(filepath.Join(cfg.StateDir, "docfold.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	elog, err := editlog.New(editlog.Options{Logger: log, Dir: cfg.StateDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open edit log: %v\n", err)
		os.Exit(1)
	}

	provider, modelID := cfg.DefaultModel()
	apiKey, _ := config.ResolveAPIKey(provider.ID)
	chat, err := llm.NewClient(llm.ClientOptions{
		Provider: provider.Kind,
		APIKey:   apiKey,
		BaseURL:  provider.BaseURL,
	})
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			fmt.Fprintf(os.Stderr, "provider %s: set %s\n", provider.ID, config.APIKeyEnvVar(provider.ID))
		} else {
			fmt.Fprintf(os.Stderr, "failed to init llm client: %v\n", err)
		}
		os.Exit(1)
	}

	ed, err := editor.NewService(editor.Options{
		Logger:         log,
		Store:          store,
		Chat:           chat,
		EditLog:        elog,
		Model:          modelID,
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init editor: %v\n", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(store, ed, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("docfold-agent listening",
			"addr", cfg.ListenAddr,
			"provider", provider.ID,
			"model", modelID,
			"version", Version,
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "server exited with error: %v\n", err)
			os.Exit(1)
		}
	}
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
