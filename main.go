package main

import (
	"context"
	"log"

	"intercom-dvr/api"
	"intercom-dvr/catalog"
	"intercom-dvr/config"
	"intercom-dvr/cron"
	"intercom-dvr/database"
	"intercom-dvr/monitoring"
	"intercom-dvr/recording"
	"intercom-dvr/service"
	"intercom-dvr/storage"

	"github.com/joho/godotenv"
)

func main() {

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load config
	cfg := config.LoadConfig()

	// Ensure all required directories exist
	config.EnsurePaths(cfg)

	// Initialize database
	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize SQLite database:", err)
	}
	defer db.Close()

	// Initialize remote storage
	store, err := storage.NewS3Storage(storage.S3Config{
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		AccountID: cfg.S3AccountID,
		Bucket:    cfg.S3Bucket,
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
	})
	if err != nil {
		log.Fatal("Failed to initialize remote storage:", err)
	}

	ffmpeg := recording.CommandFFmpeg{}

	catalogClient := catalog.NewClient(cfg)
	supervisor := recording.NewSupervisor(cfg, ffmpeg)
	assembler := recording.NewAssembler(cfg, ffmpeg)
	archiveService := service.NewArchiveService(cfg, db, store)
	diskMonitor := monitoring.NewDiskMonitor(cfg.StoragePath, cfg.MinFreeSpaceGB)
	connectivity := monitoring.NewConnectivityChecker()

	controller := service.NewController(catalogClient, supervisor, assembler, archiveService, diskMonitor)

	// Background maintenance: upload retries and scheduled retention sweep
	cron.StartArchiveCrons(archiveService, connectivity)

	// Start the capture control loop in background
	go controller.Run(context.Background())

	// Start status API server
	server := api.NewServer(cfg, db, controller)
	server.Start()
}
