package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/movaia/movaia/internal/analysis"
	"github.com/movaia/movaia/internal/api"
	"github.com/movaia/movaia/internal/config"
	"github.com/movaia/movaia/internal/database"
	"github.com/movaia/movaia/internal/logging"
	"github.com/movaia/movaia/internal/objectstore"
	"github.com/movaia/movaia/internal/results"
	"github.com/movaia/movaia/internal/upload"
)

func main() {
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.NewDB(database.Config{
		Type:       cfg.DBType,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		Name:       cfg.DBName,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	var store objectstore.ObjectStore
	var localStore *objectstore.LocalStore
	if cfg.StorageType == "local" {
		localStore, err = objectstore.NewLocalStore(cfg.LocalMedia, cfg.PublicURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize local media store")
		}
		store = localStore
	} else {
		store, err = objectstore.NewS3Store(context.Background(), cfg.MediaBucket, cfg.AWSRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize object store")
		}
	}

	analysisRepo := database.NewAnalysisRepository(db)
	usageRepo := database.NewUsageRepository(db)
	activityRepo := database.NewActivityLogRepository(db)
	notificationRepo := database.NewNotificationRepository(db)
	athleteRepo := database.NewAthleteRepository(db)

	worker := analysis.NewWorkerClient(cfg.WorkerBaseURL)
	trigger := analysis.NewTrigger(analysisRepo, store, worker, cfg.WebhookURL, cfg.DownloadURLTTL)
	receiver := analysis.NewReceiver(analysisRepo, notificationRepo)
	coordinator := upload.NewCoordinator(analysisRepo, usageRepo, activityRepo, store, trigger, cfg.UploadURLTTL)
	assembler := results.NewAssembler(analysisRepo, store, results.ScreeningRules, cfg.DownloadURLTTL)

	app := &api.App{
		Coordinator:   coordinator,
		Trigger:       trigger,
		Receiver:      receiver,
		Assembler:     assembler,
		Athletes:      athleteRepo,
		Notifications: notificationRepo,
		WebhookSecret: cfg.WebhookSecret,
	}

	var router http.Handler = api.NewRouter(app)
	if localStore != nil {
		mux := http.NewServeMux()
		mux.Handle("/media/", localStore)
		mux.Handle("/", router)
		router = mux
	}

	log.Info().
		Str("port", cfg.ListenPort).
		Str("dbType", cfg.DBType).
		Str("storage", cfg.StorageType).
		Str("bucket", cfg.MediaBucket).
		Str("worker", cfg.WorkerBaseURL).
		Msg("Server starting")

	if err := http.ListenAndServe(":"+cfg.ListenPort, router); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
