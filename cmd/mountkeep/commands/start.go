package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/mountkeep/internal/logger"
	"github.com/marmos91/mountkeep/internal/telemetry"
	"github.com/marmos91/mountkeep/pkg/api"
	"github.com/marmos91/mountkeep/pkg/config"
	"github.com/marmos91/mountkeep/pkg/mount/orchestrator"
	"github.com/marmos91/mountkeep/pkg/mount/resolver"
	"github.com/marmos91/mountkeep/pkg/reachability"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mountkeep daemon",
	Long: `Start the mountkeep daemon with the specified configuration.

The daemon loads the registered shares from the database, mounts the ones
that should be mounted, and keeps reconciling: periodically, on network
reachability transitions, on configuration changes, and on demand via the
API or signals (SIGHUP re-mounts everything, SIGUSR1 unmounts everything).

By default, the daemon runs in the background. Use --foreground to run in
the foreground for debugging or when managed by a process supervisor.

Examples:
  # Start in background (default)
  mountkeep start

  # Start in foreground
  mountkeep start --foreground

  # Start with custom config file
  mountkeep start --config /etc/mountkeep/config.yaml

  # Start with environment variable overrides
  MOUNTKEEP_LOGGING_LEVEL=DEBUG mountkeep start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/mountkeep/mountkeep.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/mountkeep/mountkeep.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "mountkeep",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "mountkeep",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	// Initialize metrics FIRST (before creating the engine that uses them)
	metricsResult := config.InitializeMetrics(cfg)

	// Ensure the base directory exists before anything tries to mount.
	// The OS-owned namespace already exists; a daemon-owned one we create.
	if err := bootstrapBaseDir(cfg.Mount.BaseDir); err != nil {
		return fmt.Errorf("failed to prepare base directory: %w", err)
	}

	// Assemble the mount engine
	eng, err := buildEngine(ctx, cfg, metricsResult.Mount)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	logger.Info("Registry initialized", "shares", eng.registry.Len(), "base_dir", cfg.Mount.BaseDir)

	// Metrics server
	if metricsResult.Server != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		go func() {
			if err := metricsResult.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = metricsResult.Server.Shutdown(shutdownCtx)
		}()
	} else {
		logger.Info("Metrics collection disabled")
	}

	// API server (if enabled)
	apiDone := make(chan error, 1)
	if cfg.API.Enabled {
		apiServer, err := api.NewServer(cfg.API, eng.registry, eng.orchestrator)
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		logger.Info("API server enabled", "addr", apiServer.Addr())
		go func() {
			apiDone <- apiServer.Start(ctx)
		}()
	} else {
		logger.Info("API server disabled")
	}

	// Re-authorize and re-mount when the network comes back
	eng.monitor.OnTransition(func(tctx context.Context, state reachability.State) {
		if !state.Online {
			logger.WarnCtx(tctx, "Network lost", "kind", state.Kind)
			return
		}
		reset := eng.registry.ResetStickyStates()
		logger.InfoCtx(tctx, "Network restored", "kind", state.Kind, "reset_shares", reset)
		go func() {
			_ = eng.orchestrator.Reconcile(ctx, orchestrator.ScopeAll(), orchestrator.TriggerNetwork)
		}()
	})
	go eng.monitor.Run(ctx)

	// Re-mount when the configuration file changes. Mount engine settings
	// need a restart; credential and share-set changes take effect here.
	if err := config.Watch(GetConfigFile(), func(newCfg *config.Config) {
		logger.Info("Configuration reloaded, reconciling")
		go func() {
			_ = eng.orchestrator.Reconcile(ctx, orchestrator.ScopeAll(), orchestrator.TriggerConfig)
		}()
	}); err != nil {
		logger.Warn("Config watch unavailable", "error", err)
	}

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Initial reconcile
	go func() {
		_ = eng.orchestrator.Reconcile(ctx, orchestrator.ScopeAll(), orchestrator.TriggerAutomatic)
	}()

	ticker := time.NewTicker(cfg.Mount.ReconcileInterval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	logger.Info("Daemon is running. Press Ctrl+C to stop.")

	for {
		select {
		case <-ticker.C:
			go func() {
				_ = eng.orchestrator.Reconcile(ctx, orchestrator.ScopeAll(), orchestrator.TriggerAutomatic)
			}()

		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, re-mounting all shares")
				go func() {
					_ = eng.orchestrator.Reconcile(ctx, orchestrator.ScopeAll(), orchestrator.TriggerUser)
				}()

			case syscall.SIGUSR1:
				logger.Info("SIGUSR1 received, unmounting all shares")
				go func() {
					if err := eng.orchestrator.Unmount(ctx, orchestrator.ScopeAll(), true); err != nil {
						logger.Error("Unmount failed", "error", err)
					}
				}()

			default:
				logger.Info("Shutdown signal received, initiating graceful shutdown")
				return shutdown(cfg, eng, cancel)
			}

		case err := <-apiDone:
			if err != nil {
				logger.Error("API server failed", "error", err)
				return shutdownErr(cfg, eng, cancel, err)
			}
		}
	}
}

// shutdown stops the engine, optionally unmounting everything first.
func shutdown(cfg *config.Config, eng *engine, cancel context.CancelFunc) error {
	return shutdownErr(cfg, eng, cancel, nil)
}

func shutdownErr(cfg *config.Config, eng *engine, cancel context.CancelFunc, cause error) error {
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if cfg.Mount.UnmountOnExit {
		logger.Info("Unmounting all shares before exit")
		if err := eng.orchestrator.Unmount(shutdownCtx, orchestrator.ScopeAll(), false); err != nil {
			logger.Error("Unmount on exit failed", "error", err)
		}
	}

	// Cancelling the root context stops the API server, the monitor, and
	// any in-flight batch.
	cancel()

	logger.Info("Daemon stopped")
	return cause
}

// bootstrapBaseDir ensures the mount base directory exists.
// The OS-owned shared namespace is left alone: it exists and the daemon
// must not manage it.
func bootstrapBaseDir(baseDir string) error {
	if resolver.ProviderOwned(baseDir) {
		return nil
	}
	return os.MkdirAll(baseDir, 0755)
}

// startDaemon starts the daemon as a background process.
func startDaemon() error {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	mountkeepStateDir := filepath.Join(stateDir, "mountkeep")

	if err := os.MkdirAll(mountkeepStateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = filepath.Join(mountkeepStateDir, "mountkeep.pid")
	}

	// Check if already running
	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("mountkeep is already running (PID %d)", pid)
					}
				}
			}
		}
		// Stale PID file, remove it
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(mountkeepStateDir, "mountkeep.log")
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	daemon := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	daemon.Stdout = logFileHandle
	daemon.Stderr = logFileHandle

	// Detach from parent process
	daemon.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := daemon.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_ = logFileHandle.Close()

	fmt.Printf("mountkeep started in background (PID %d)\n", daemon.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nSend SIGTERM to stop the daemon, SIGHUP to re-mount everything")

	return nil
}
