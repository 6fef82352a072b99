package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/evaltools/evalgate/internal/audit"
	"github.com/evaltools/evalgate/internal/config"
	"github.com/evaltools/evalgate/internal/server"
	"github.com/evaltools/evalgate/internal/supervisor"
)

func main() {
	// 1. Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// 2. Load configuration (environment first, CLI flags override)
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting evalgate",
		"externalPort", cfg.ExternalPort,
		"restPort", cfg.RESTPort,
		"wrapperPort", cfg.WrapperPort,
		"mode", cfg.Mode)

	// 3. Open the lifecycle audit log if configured
	var auditLog *audit.Logger
	if cfg.AuditDBPath != "" {
		auditLog, err = audit.Open(cfg.AuditDBPath)
		if err != nil {
			logger.Error("Failed to open audit log", "path", cfg.AuditDBPath, "error", err)
			os.Exit(1)
		}
		defer auditLog.Close()
	}

	// 4. Create the process supervisor
	var readiness supervisor.ReadinessChecker
	if cfg.ProbeReadiness {
		readiness = supervisor.NewHTTPReadinessChecker(cfg.ReadinessInterval, cfg.ReadinessDeadline)
	} else {
		readiness = &supervisor.FixedDelayChecker{Delay: cfg.LaunchDelay}
	}

	sup, err := supervisor.New(supervisor.Config{
		Launcher:       supervisor.NewExecLauncher(),
		Readiness:      readiness,
		Logger:         logger,
		Audit:          auditLog,
		RESTPort:       cfg.RESTPort,
		WrapperPort:    cfg.WrapperPort,
		RESTCommand:    cfg.RESTArgv(),
		WrapperCommand: cfg.WrapperArgv(),
		GracePeriod:    cfg.ShutdownGrace,
	})
	if err != nil {
		logger.Error("Failed to create supervisor", "error", err)
		os.Exit(1)
	}

	// 5. Run the external server; it installs the signal handlers and
	// drives shutdown.
	srv := server.New(cfg, sup, logger)
	if err := srv.Run(context.Background()); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}
