// Command pipeline-worker runs the clinical-trial protocol eligibility
// extraction pipeline: an outbox dispatcher driving the seven-node graph,
// a dead-letter sweeper, and a small HTTP surface for triggering runs and
// reading results (spec.md §1). A cobra root command plus retry/migrate/
// version subcommands (SPEC_FULL.md §11).
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
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/eligibility/pkg/config"
	"github.com/codeready-toolchain/eligibility/pkg/observability"
	"github.com/codeready-toolchain/eligibility/pkg/version"
)

var configDir string

func main() {
	root := &cobra.Command{
		Use:   "pipeline-worker",
		Short: "Eligibility criteria extraction pipeline worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newRetryCmd())
	root.AddCommand(newVersionCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("pipeline-worker exited with error", "error", err)
		os.Exit(1)
	}
}

// newVersionCmd prints the build version derived from embedded VCS info.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}

// loadEnvFile loads a .env file from configDir: a missing file is a warning,
// not a fatal error, since production deployments set environment variables
// directly.
func loadEnvFile(dir string) {
	envPath := filepath.Join(dir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with process environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}
}

// runServe is the default command: load config, build every collaborator,
// and run the dispatcher, cleanup sweeper, and HTTP server together until a
// shutdown signal arrives.
func runServe(parent context.Context) error {
	observability.ConfigureLogging(observability.LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	})
	loadEnvFile(configDir)
	slog.Info("starting pipeline-worker", "version", version.Full())

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, configDir)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer a.close()

	runtime, termRouter, err := a.buildPipeline()
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	a.runtime = runtime
	a.router = termRouter

	if path := a.cfg.System.TerminologyRouteTable; path != "" {
		watcher, err := config.WatchRouteTable(path, func(table map[string][]string) {
			a.router.Reload(toTerminologyRouteTable(table))
		})
		if err != nil {
			slog.Warn("failed to start route table watcher, hot-reload disabled", "path", path, "error", err)
		} else {
			a.watcher = watcher
		}
	}

	dispatcher := a.buildOutboxDispatcher(runtime)
	dispatcher.Start(ctx)

	cleanupSvc := a.buildCleanupService()
	cleanupSvc.Start(ctx)

	go a.watchBreakers(ctx, 15*time.Second)

	httpServer := &http.Server{
		Addr:              a.cfg.System.HTTPAddr,
		Handler:           a.buildHTTPServer().Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", a.cfg.System.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErrCh:
		if err != nil {
			slog.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	dispatcher.Stop()
	cleanupSvc.Stop()

	return nil
}
