package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/config"
	"github.com/paracket/paracket/internal/publisher"
	"github.com/paracket/paracket/internal/publisher/mastodon"
	"github.com/paracket/paracket/internal/publisher/reddit"
	"github.com/paracket/paracket/internal/publisher/twitter"
	"github.com/paracket/paracket/internal/server"
	"github.com/paracket/paracket/internal/service"
	"github.com/paracket/paracket/internal/store"
	"github.com/paracket/paracket/pkg/logger"
)

var (
	configPath string
	version    = "0.1.0"
	gitCommit  = "unknown"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "paracket",
	Short: "Paracket - Brand voice social post scheduler",
	Long:  `Paracket adapts brand-voice content to social platforms, schedules the posts and publishes them when they come due.`,
	RunE:  runServer,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan-and-dispatch pass and exit",
	Long: `Scan performs a single complete pass over the scheduled post store,
publishing every active post whose scheduled time has arrived, then exits.
Run it periodically via cron or a CI schedule. The exit code is always zero;
per-post failures are recorded in the store, not surfaced to the trigger.`,
	RunE: runScan,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Paracket %s\n", version)
		fmt.Printf("Git commit: %s\n", gitCommit)
		fmt.Printf("Build time: %s\n", buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/server.yaml", "config file path")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServer(*cobra.Command, []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Paracket server", zap.String("version", version))

	srv, err := server.NewServer(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil {
			appLogger.Error("Server failed to start", zap.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Shutting down server...")
	case <-ctx.Done():
		appLogger.Info("Server context cancelled")
	}

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	appLogger.Info("Server exited")
	return nil
}

// runScan is the cron entry point. It never returns an error: failures are
// logged and recorded in the store so the periodic trigger is never blocked
// by a nonzero exit.
func runScan(*cobra.Command, []string) error {
	// Credentials may come from a local .env when run by hand.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return nil
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return nil
	}
	defer appLogger.Sync()

	dispatcher, err := buildDispatcher(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to set up dispatcher", zap.Error(err))
		return nil
	}

	summary, err := dispatcher.Scan(context.Background())
	if err != nil {
		if err == store.ErrLocked {
			appLogger.Info("Another scan is running, nothing to do")
			return nil
		}
		appLogger.Error("Scan failed", zap.Error(err))
		return nil
	}

	appLogger.Info("Scan finished",
		zap.Int("total", summary.Total),
		zap.Int("due", summary.Due),
		zap.Int("posted", summary.Posted),
		zap.Int("failed", summary.Failed))
	return nil
}

func buildDispatcher(cfg *config.Config, appLogger *zap.Logger) (*service.Dispatcher, error) {
	lockStale, err := time.ParseDuration(cfg.Store.LockStaleAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid lock_stale_after: %w", err)
	}
	publishTimeout, err := time.ParseDuration(cfg.Scheduler.PublishTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid publish_timeout: %w", err)
	}

	st, err := store.New(cfg.Store.Dir, appLogger, store.WithLockStaleAfter(lockStale))
	if err != nil {
		return nil, err
	}

	manager := publisher.NewManager(appLogger)
	for _, pub := range []publisher.Publisher{
		twitter.New(appLogger),
		mastodon.New(appLogger),
		reddit.New(appLogger),
	} {
		if err := manager.Register(pub); err != nil {
			return nil, err
		}
	}

	return service.NewDispatcher(
		st,
		manager,
		service.NewCredentialResolver(cfg.Platforms),
		service.NewMetrics(prometheus.NewRegistry()),
		appLogger,
		service.WithPublishTimeout(publishTimeout),
	), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
