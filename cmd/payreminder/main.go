package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payreminder/internal/config"
	"payreminder/internal/constants"
	"payreminder/internal/database"
	"payreminder/internal/policy"
	"payreminder/internal/retry"
	"payreminder/internal/service"
	"payreminder/internal/tracing"
	"payreminder/pkg/whatsapp"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
	runJob     = flag.String("run-job", "", "Run one job (monthly-reminder or overdue-notice) and exit")
	drain      = flag.Bool("drain", false, "Run one dispatch pass over the backlog and exit")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("payreminder %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	// Local .env files are optional; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting payreminder")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(tracing.Config{
		ServiceName:    "payreminder",
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	var client whatsapp.Client
	if cfg.Channel.Configured() {
		client = whatsapp.NewCloudClient(cfg.Channel)
		logger.Info("Channel client configured for the Cloud API")
	} else {
		client = whatsapp.NewDemoClient(logger)
		logger.Warn("Channel credentials missing, running in demo mode")
	}

	limiter := policy.NewRateLimiter(cfg.RateLimit.MaxPerHour, cfg.RateLimit.MaxPerDay)
	window := policy.NewSendWindow(cfg.Window.StartHour, cfg.Window.EndHour, cfg.Window.AllowedDays)
	delays := policy.NewDelayPolicy(cfg.Dispatch.DelayMinSec, cfg.Dispatch.DelayMaxSec)
	batchDelay := time.Duration(cfg.Dispatch.BatchDelaySec) * time.Second

	dispatcher := service.NewDispatcher(db, client, limiter, window, delays, service.DispatcherOptions{
		CountryCode:  cfg.Channel.CountryCode,
		BatchSize:    cfg.Dispatch.BatchSize,
		BatchDelay:   batchDelay,
		BypassWindow: cfg.Dispatch.BypassWindow,
	}, logger)

	reminders := service.NewReminderService(db, delays, cfg.Dispatch.BatchSize, batchDelay, logger)

	scheduler := service.NewScheduler(logger)
	scheduler.AddJob(service.Job{
		Name:       service.JobMonthlyReminder,
		DayOfMonth: cfg.Jobs.MonthlyReminderDay,
		Hour:       cfg.Jobs.StartHour,
		Minute:     cfg.Jobs.StartMinute,
		Run:        withDispatch(reminders.BuildMonthlyReminders, dispatcher, logger),
	})
	scheduler.AddJob(service.Job{
		Name:       service.JobOverdueNotice,
		DayOfMonth: cfg.Jobs.OverdueReminderDay,
		Hour:       cfg.Jobs.StartHour,
		Minute:     cfg.Jobs.StartMinute,
		Run:        withDispatch(reminders.BuildOverdueNotices, dispatcher, logger),
	})

	if *runJob != "" {
		return scheduler.RunOnce(ctx, *runJob)
	}
	if *drain {
		summary, err := dispatcher.Run(ctx)
		logger.WithFields(logrus.Fields{
			"sent":    summary.Sent,
			"failed":  summary.Failed,
			"skipped": summary.Skipped,
		}).Info("Drain complete")
		return err
	}

	go scheduler.Start(ctx)
	defer scheduler.Stop()

	server := NewServer(ctx, cfg, db, dispatcher, scheduler, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

// withDispatch chains a reminder builder with a dispatch pass so a
// scheduled job both enqueues and delivers.
func withDispatch(build service.JobFunc, dispatcher *service.Dispatcher, logger *logrus.Logger) service.JobFunc {
	return func(ctx context.Context) error {
		if err := build(ctx); err != nil {
			return err
		}
		summary, err := dispatcher.Run(ctx)
		logger.WithFields(logrus.Fields{
			"sent":    summary.Sent,
			"failed":  summary.Failed,
			"skipped": summary.Skipped,
		}).Info("Job dispatch complete")
		return err
	}
}
