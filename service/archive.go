package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"intercom-dvr/config"
	"intercom-dvr/database"
	"intercom-dvr/recording"
	"intercom-dvr/storage"
)

// Max concurrent uploads within one archive run
const uploadConcurrency = 3

// ArchiveService uploads merged hour files to remote storage, removes their
// local copies after a confirmed upload, and sweeps remote date folders past
// the retention window. Every merged file is tracked in the archive ledger
// so a failed upload can be retried later instead of silently accumulating
// on local disk.
type ArchiveService struct {
	cfg   config.Config
	db    database.Database
	store storage.RemoteStorage
	sem   *semaphore.Weighted
	now   func() time.Time
}

// NewArchiveService creates a new archive service
func NewArchiveService(cfg config.Config, db database.Database, store storage.RemoteStorage) *ArchiveService {
	return &ArchiveService{
		cfg:   cfg,
		db:    db,
		store: store,
		sem:   semaphore.NewWeighted(uploadConcurrency),
		now:   time.Now,
	}
}

// ArchiveDate uploads every merged hour file found under the local date
// directory for day. Hour buckets still holding live capture only contain
// sequence-numbered segments, never a merged file, so scanning the whole
// date is safe and also picks up hours left behind by earlier failures.
func (s *ArchiveService) ArchiveDate(ctx context.Context, day time.Time) error {
	date := day.Format(recording.DateLayout)
	dateDir := filepath.Join(s.cfg.StoragePath, date)

	cameraDirs, err := os.ReadDir(dateDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Archive: nothing to upload for %s", date)
			return nil
		}
		return fmt.Errorf("failed to list date directory %s: %w", dateDir, err)
	}

	var wg sync.WaitGroup
	for _, cameraDir := range cameraDirs {
		if !cameraDir.IsDir() {
			continue
		}
		camera := cameraDir.Name()

		hourDirs, err := os.ReadDir(filepath.Join(dateDir, camera))
		if err != nil {
			log.Printf("Archive: failed to list camera directory %s: %v", camera, err)
			continue
		}

		for _, hourDir := range hourDirs {
			if !hourDir.IsDir() {
				continue
			}
			hour := hourDir.Name()
			mergedPath := filepath.Join(dateDir, camera, hour, fmt.Sprintf("%s_%s_%s%s", camera, date, hour, s.cfg.VideoExtension))
			if _, err := os.Stat(mergedPath); err != nil {
				continue // bucket not assembled (yet), leave it alone
			}

			wg.Add(1)
			go func(camera, date, hour, mergedPath string) {
				defer wg.Done()
				if err := s.sem.Acquire(ctx, 1); err != nil {
					return
				}
				defer s.sem.Release(1)

				if err := s.uploadMerged(camera, date, hour, mergedPath); err != nil {
					log.Printf("[%s] Archive upload failed for %s: %v", camera, mergedPath, err)
				}
			}(camera, date, hour, mergedPath)
		}
	}
	wg.Wait()

	// Date dir disappears once the last camera dir is gone.
	if err := os.Remove(dateDir); err == nil {
		log.Printf("Archive: removed local date directory %s", dateDir)
	}
	return nil
}

// uploadMerged uploads one merged hour file and removes its local traces.
// The file is uploaded without its extension and renamed remotely afterwards;
// the platform handles extensionless uploads markedly faster. Local deletion
// happens strictly after the upload is confirmed.
func (s *ArchiveService) uploadMerged(camera, date, hour, mergedPath string) error {
	record, err := s.ensureRecord(camera, date, hour, mergedPath)
	if err != nil {
		return err
	}

	remoteDir := path.Join(s.cfg.RemoteRoot, date, camera)
	for _, dir := range []string{s.cfg.RemoteRoot, path.Join(s.cfg.RemoteRoot, date), remoteDir} {
		if err := s.store.Mkdir(dir); err != nil {
			s.db.MarkArchiveFailed(record.ID, fmt.Sprintf("mkdir error: %v", err))
			return fmt.Errorf("failed to create remote folder %s: %w", dir, err)
		}
	}

	fileName := filepath.Base(mergedPath)
	stem := strings.TrimSuffix(fileName, s.cfg.VideoExtension)
	stagingPath := path.Join(remoteDir, stem)
	finalPath := path.Join(remoteDir, fileName)

	if err := s.store.Upload(mergedPath, stagingPath); err != nil {
		s.db.MarkArchiveFailed(record.ID, fmt.Sprintf("upload error: %v", err))
		return fmt.Errorf("upload failed: %w", err)
	}
	if err := s.store.Move(stagingPath, finalPath); err != nil {
		s.db.MarkArchiveFailed(record.ID, fmt.Sprintf("rename error: %v", err))
		return fmt.Errorf("remote rename failed: %w", err)
	}

	if err := s.db.MarkArchiveUploaded(record.ID, finalPath, s.now()); err != nil {
		log.Printf("[%s] Failed to update ledger for %s: %v", camera, mergedPath, err)
	}

	if err := os.Remove(mergedPath); err != nil {
		return fmt.Errorf("failed to remove local file after upload: %w", err)
	}
	s.removeEmptyParents(mergedPath)

	log.Printf("[%s] %s was uploaded and removed from local", camera, fileName)
	return nil
}

// removeEmptyParents removes the hour directory and, when empty, the camera
// directory above it. The date directory is handled by ArchiveDate.
func (s *ArchiveService) removeEmptyParents(mergedPath string) {
	hourDir := filepath.Dir(mergedPath)
	if err := os.Remove(hourDir); err != nil {
		log.Printf("Archive: hour directory %s not removed: %v", hourDir, err)
		return
	}
	// Camera dir may still hold other hour buckets.
	os.Remove(filepath.Dir(hourDir))
}

// ensureRecord finds or creates the ledger row for a merged file.
func (s *ArchiveService) ensureRecord(camera, date, hour, mergedPath string) (*database.ArchiveRecord, error) {
	record, err := s.db.GetArchiveByLocalPath(mergedPath)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}

	var size int64
	if info, err := os.Stat(mergedPath); err == nil {
		size = info.Size()
	}

	id, err := s.db.CreateArchive(database.ArchiveRecord{
		CameraName: camera,
		Date:       date,
		Hour:       hour,
		LocalPath:  mergedPath,
		Size:       size,
		Status:     database.StatusPending,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return nil, err
	}

	return &database.ArchiveRecord{
		ID:         id,
		CameraName: camera,
		Date:       date,
		Hour:       hour,
		LocalPath:  mergedPath,
		Size:       size,
		Status:     database.StatusPending,
	}, nil
}

// RetryPending re-attempts uploads for ledger rows that never made it
// off-box. Rows whose local file has vanished are marked failed and left
// for inspection.
func (s *ArchiveService) RetryPending(ctx context.Context) {
	for _, status := range []database.ArchiveStatus{database.StatusPending, database.StatusFailed} {
		records, err := s.db.GetArchivesByStatus(status, 50)
		if err != nil {
			log.Printf("Archive retry: failed to query %s records: %v", status, err)
			continue
		}
		for _, record := range records {
			if ctx.Err() != nil {
				return
			}
			if _, err := os.Stat(record.LocalPath); err != nil {
				s.db.MarkArchiveFailed(record.ID, "local file missing")
				continue
			}
			log.Printf("Archive retry: re-uploading %s", record.LocalPath)
			if err := s.uploadMerged(record.CameraName, record.Date, record.Hour, record.LocalPath); err != nil {
				log.Printf("Archive retry failed for %s: %v", record.LocalPath, err)
			}
		}
	}
}

// RetentionSweep permanently removes remote date folders strictly older
// than the retention window. A remote folder whose name does not parse as a
// date is a hard error: the sweep reports it and deletes nothing it cannot
// date.
func (s *ArchiveService) RetentionSweep(ctx context.Context) error {
	folders, err := s.store.ListFolders(s.cfg.RemoteRoot)
	if err != nil {
		return fmt.Errorf("failed to list remote date folders: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	for _, folder := range folders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		folderDate, err := time.Parse(recording.DateLayout, folder.Name)
		if err != nil {
			return fmt.Errorf("remote folder %q is not a date folder, refusing to sweep it: %w", folder.Name, err)
		}
		if !folderDate.Before(cutoff) {
			continue
		}
		remotePath := path.Join(s.cfg.RemoteRoot, folder.Name)
		if err := s.store.Remove(remotePath, true); err != nil {
			log.Printf("Retention sweep: failed to remove %s: %v", remotePath, err)
			continue
		}
		log.Printf("Folder %q was removed from remote storage", folder.Name)
	}

	// Trim uploaded ledger rows alongside the remote sweep.
	if err := s.db.DeleteArchivesOlderThan(cutoff); err != nil {
		log.Printf("Retention sweep: ledger trim failed: %v", err)
	}
	return nil
}
