package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"enrollment_sync/internal/app"
	"enrollment_sync/internal/domain/directory"
	"enrollment_sync/internal/domain/period"
	"enrollment_sync/internal/infra/config"
	idb "enrollment_sync/internal/infra/database"
	"enrollment_sync/internal/infra/lock"
	"enrollment_sync/internal/infra/logger"
	"enrollment_sync/internal/infra/scheduler"
	"enrollment_sync/internal/infra/sigaa"
	"enrollment_sync/internal/infra/telegram"
)

func main() {
	once := flag.String("once", "", "run a single sync (students|teachers) and exit")
	year := flag.String("year", "", "academic year for -once (default: current)")
	term := flag.String("term", "", "academic term for -once (default: current)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	policy, err := app.ParseMissingPersonPolicy(cfg.MissingPersonPolicy)
	if err != nil {
		mainLogger.Fatalf("Invalid MISSING_PERSON_POLICY: %v", err)
	}

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(context.Background(), cfg.DatabaseURL, idb.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		PingTimeout:  cfg.DBPingTimeout,
	})
	if err != nil {
		mainLogger.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")
	dir := idb.NewPostgresDirectory(db, cfg.DBQueryTimeout)

	provider := sigaa.NewClient(sigaa.ClientConfig{
		BaseURL: cfg.SigaaBaseURL,
		Token:   cfg.SigaaToken,
		Timeout: cfg.SigaaTimeout,
		Logger:  logger.Component("sigaa"),
	})

	var locker app.Locker = app.NoopLocker{}
	if cfg.RedisAddr != "" {
		client, err := lock.NewRedisClient(context.Background(), cfg.RedisAddr)
		if err != nil {
			mainLogger.Fatalf("Could not connect to Redis: %v", err)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client)
		mainLogger.Info("Redis run lock enabled.")
	}

	var notifier app.RunNotifier
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewOfflineBot(cfg.TelegramToken)
		if err != nil {
			mainLogger.Fatalf("Could not create Telegram bot: %v", err)
		}
		notifier = telegram.NewRunAlertNotifier(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID)
		mainLogger.Info("Telegram run alerts enabled.")
	}

	syncService := app.NewSyncService(
		config.NewFileClientStore(cfg.ClientsFile),
		provider,
		dir,
		locker,
		notifier,
		app.SyncServiceConfig{
			StudentRole:   directory.Role{Name: "student", ID: cfg.StudentRoleID},
			TeacherRole:   directory.Role{Name: "editingteacher", ID: cfg.TeacherRoleID},
			MissingPerson: policy,
			TermRule:      period.TermRule{SecondTermStartMonth: cfg.SecondTermStartMonth},
			LockTTL:       cfg.LockTTL,
		},
		logger.Component("sync"),
	)

	if *once != "" {
		os.Exit(runOnce(syncService, *once, *year, *term))
	}

	syncScheduler := scheduler.NewSyncScheduler(syncService, logger.Component("scheduler"),
		scheduler.Job{Kind: app.JobStudents, CronSpec: cfg.CronSpecStudents},
		scheduler.Job{Kind: app.JobTeachers, CronSpec: cfg.CronSpecTeachers},
	)
	if err := syncScheduler.Start(); err != nil {
		mainLogger.Fatalf("Could not start scheduler: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	syncScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}

// runOnce runs one sync and returns the process exit code.
func runOnce(svc *app.SyncService, job, year, term string) int {
	log := logger.Component("main")

	kind, err := app.ParseJobKind(job)
	if err != nil {
		log.Error(err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var report *app.RunReport
	if year == "" && term == "" {
		report, err = svc.RunCurrent(ctx, kind)
	} else {
		p, perr := period.FromParameters(year, term)
		if perr != nil {
			log.Error(perr)
			return 2
		}
		report, err = svc.Run(ctx, kind, p)
	}
	if err != nil {
		log.WithError(err).Error("Sync run failed")
		return 1
	}
	if report.HasFailures() {
		return 1
	}
	return 0
}
