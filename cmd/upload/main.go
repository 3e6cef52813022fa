package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"intercom-dvr/config"
	"intercom-dvr/database"
	"intercom-dvr/recording"
	"intercom-dvr/service"
	"intercom-dvr/storage"
)

// Manual archive maintenance: re-run the upload pipeline for a date, drain
// the retry backlog, or force a retention sweep without waiting for the
// scheduled jobs.
func main() {
	date := flag.String("date", "", "Date (DD-MM-YY) whose merged files should be uploaded")
	retry := flag.Bool("retry", false, "Retry every pending and failed upload in the ledger")
	sweep := flag.Bool("sweep", false, "Run the remote retention sweep now")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if *date == "" && !*retry && !*sweep {
		log.Fatal("Nothing to do: provide -date, -retry or -sweep")
	}

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: .env file not found at %s, using environment variables", *envFile)
	}

	cfg := config.LoadConfig()

	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open archive ledger: %v", err)
	}
	defer db.Close()

	store, err := storage.NewS3Storage(storage.S3Config{
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		AccountID: cfg.S3AccountID,
		Bucket:    cfg.S3Bucket,
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
	})
	if err != nil {
		log.Fatalf("Failed to initialize remote storage: %v", err)
	}

	archive := service.NewArchiveService(cfg, db, store)
	ctx := context.Background()

	if *date != "" {
		day, err := time.Parse(recording.DateLayout, *date)
		if err != nil {
			log.Fatalf("Invalid -date %q, expected DD-MM-YY: %v", *date, err)
		}
		log.Printf("Archiving merged files for %s", *date)
		if err := archive.ArchiveDate(ctx, day); err != nil {
			log.Fatalf("Archive run failed: %v", err)
		}
	}

	if *retry {
		log.Println("Retrying pending and failed uploads")
		archive.RetryPending(ctx)
	}

	if *sweep {
		log.Println("Running retention sweep")
		if err := archive.RetentionSweep(ctx); err != nil {
			log.Fatalf("Retention sweep failed: %v", err)
		}
	}
}
