package cron

import (
	"context"
	"log"
	"time"

	"intercom-dvr/service"

	"github.com/robfig/cron/v3"
)

// OnlineChecker reports whether the uplink is usable. Upload retries are
// skipped while offline so they don't burn their attempts against a dead
// network.
type OnlineChecker interface {
	IsOnline() bool
}

// StartArchiveCrons schedules the background archive maintenance jobs:
// a retry pass over merged files whose upload never succeeded, and a daily
// retention sweep as a safety net behind the post-upload sweep.
func StartArchiveCrons(archive *service.ArchiveService, online OnlineChecker) {
	retry := func() {
		if online != nil && !online.IsOnline() {
			log.Println("Archive retry skipped: no network connectivity")
			return
		}
		archive.RetryPending(context.Background())
	}

	go func() {
		// Initial delay so startup logging settles before the first pass
		time.Sleep(10 * time.Second)

		retry()

		schedule := cron.New()

		_, err := schedule.AddFunc("@every 15m", retry)
		if err != nil {
			log.Fatalf("Error scheduling archive retry cron: %v", err)
		}

		_, err = schedule.AddFunc("@daily", func() {
			if err := archive.RetentionSweep(context.Background()); err != nil {
				log.Printf("Scheduled retention sweep failed: %v", err)
			}
		})
		if err != nil {
			log.Fatalf("Error scheduling retention sweep cron: %v", err)
		}

		schedule.Start()
		log.Println("Archive maintenance cron jobs started (retry every 15m, sweep daily)")
	}()
}
