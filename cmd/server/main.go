// Command server is the simulator control plane's process entrypoint: it
// loads configuration, wires every manager, starts background tasks, and
// serves the REST and WebSocket surfaces until signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/radiocontrol/simctrl/internal/config"
	"github.com/radiocontrol/simctrl/internal/connmgr"
	"github.com/radiocontrol/simctrl/internal/health"
	"github.com/radiocontrol/simctrl/internal/hostdriver"
	"github.com/radiocontrol/simctrl/internal/logging"
	"github.com/radiocontrol/simctrl/internal/recording"
	"github.com/radiocontrol/simctrl/internal/resource"
	"github.com/radiocontrol/simctrl/internal/security"
	"github.com/radiocontrol/simctrl/internal/simsession"
	"github.com/radiocontrol/simctrl/internal/store"
	"github.com/radiocontrol/simctrl/internal/transport"
)

// Exit codes per spec §6.
const (
	exitOK                = 0
	exitBadConfiguration  = 2
	exitStateDirUnusable  = 3
	exitHostDriverMissing = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfgManager, err := config.NewManager(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitBadConfiguration
	}
	cfg := cfgManager.Config()

	logger := logging.GetLogger()
	logCfg := cfg.ToLoggingConfig()
	if err := logging.Setup(&logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		return exitBadConfiguration
	}
	logger.WithField("config", cfg.String()).Info("starting simulator control plane")

	if _, err := exec.LookPath(cfg.HostDriver.SimctlBin); err != nil {
		logger.WithError(err).WithField("bin", cfg.HostDriver.SimctlBin).Error("host driver binary not found on PATH")
		return exitHostDriverMissing
	}

	if err := os.MkdirAll(cfg.State.Dir, 0755); err != nil {
		logger.WithError(err).WithField("state_dir", cfg.State.Dir).Error("state directory is unusable")
		return exitStateDirUnusable
	}

	driver := hostdriver.New(
		cfg.HostDriver.SimctlBin, cfg.HostDriver.AutomationBin,
		cfg.HostDriver.CreateTimeout, cfg.HostDriver.ActionTimeout,
		cfg.HostDriver.RetryAttempts, logger,
	)

	sessionStorePath := filepath.Join(cfg.State.Dir, "sessions.json")
	sessionStore, err := store.New(sessionStorePath, cfg.HostDriver.BackupRetentionCount, logger)
	if err != nil {
		logger.WithError(err).Error("failed to open session store")
		return exitStateDirUnusable
	}

	sessions := simsession.NewManager(driver, sessionStore, logger)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	reconcileCtx, reconcileCancel := context.WithTimeout(rootCtx, 60*time.Second)
	if err := sessions.Reconcile(reconcileCtx); err != nil {
		logger.WithError(err).Warn("startup reconciliation encountered errors, continuing with partial state")
	}
	reconcileCancel()
	logger.WithField("session_count", len(sessions.List(rootCtx))).Info("startup reconciliation complete")

	resources := resource.New(driver, logger, resource.Config{
		MaxMemoryMB:         cfg.Resource.MaxMemoryMB,
		CheckInterval:       cfg.Resource.MemoryCheckInterval,
		ServiceIdleTimeout:  cfg.Resource.ServiceIdleTimeout,
		MaxEmergencyCleanup: cfg.Resource.MaxEmergencyCleanup,
	})
	resources.Start(rootCtx)

	conns := connmgr.New(
		logger,
		func(sessionID string) bool {
			_, err := sessions.Get(sessionID)
			return err == nil
		},
		cfg.Connection.MaxPerMinute, cfg.Connection.RateLimitWindow, cfg.Connection.MaxPerSession,
	)
	stopReaper := make(chan struct{})
	conns.StartReaper(cfg.Connection.CleanupInterval, stopReaper)

	recordings := recording.New(driver, logger, cfg.State.Dir, cfg.Recording.StopGrace)
	gate := security.New(cfg.Security.Enabled, cfg.Security.SigningKey)
	healthAgg := health.New(sessions, conns, resources, cfg.Resource.MaxMemoryMB)

	srv := transport.New(cfg, logger, sessions, resources, conns, recordings, driver, gate, healthAgg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Start() }()

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutdown signal received")
	case err := <-serveErrCh:
		if err != nil {
			logger.WithError(err).Error("transport server exited unexpectedly")
		}
	}

	shutdown(srv, recordings, resources, cfgManager, rootCancel, stopReaper, logger)
	return exitOK
}

// shutdown tears down every subsystem in reverse dependency order (spec
// §5): endpoints, then capture services, then recording. There is no
// session store flush step: the session manager writes the store after
// each create, delete, refresh and reconcile, and shutdown does not write
// it again.
func shutdown(
	srv *transport.Server,
	recordings *recording.Manager,
	resources *resource.Manager,
	cfgManager *config.Manager,
	rootCancel context.CancelFunc,
	stopReaper chan struct{},
	logger *logging.Logger,
) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("transport server shutdown did not complete cleanly")
	}
	close(stopReaper)

	resources.Stop()

	recordings.EmergencySaveAll()

	rootCancel()
	_ = cfgManager.Close()

	logger.Info("simulator control plane stopped")
}
