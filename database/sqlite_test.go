package database

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "recorder.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord(localPath string, createdAt time.Time) ArchiveRecord {
	return ArchiveRecord{
		CameraName: "cam",
		Date:       "14-03-24",
		Hour:       "15h",
		LocalPath:  localPath,
		Size:       1024,
		Status:     StatusPending,
		CreatedAt:  createdAt,
	}
}

func TestCreateAndGetArchive(t *testing.T) {
	db := testDB(t)
	now := time.Now().Truncate(time.Second)

	id, err := db.CreateArchive(sampleRecord("/records/a.mp4", now))
	if err != nil {
		t.Fatalf("CreateArchive failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	record, err := db.GetArchiveByLocalPath("/records/a.mp4")
	if err != nil {
		t.Fatalf("GetArchiveByLocalPath failed: %v", err)
	}
	if record == nil {
		t.Fatal("expected a record")
	}
	if record.Status != StatusPending || record.CameraName != "cam" || record.Size != 1024 {
		t.Errorf("unexpected record: %+v", record)
	}
	if record.UploadedAt != nil {
		t.Errorf("uploaded_at must be nil for a pending record")
	}
}

func TestGetArchiveByLocalPathMissing(t *testing.T) {
	db := testDB(t)
	record, err := db.GetArchiveByLocalPath("/records/nope.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Errorf("expected nil record for unknown path, got %+v", record)
	}
}

func TestCreateArchiveResetsExistingRow(t *testing.T) {
	db := testDB(t)
	now := time.Now().Truncate(time.Second)

	id, err := db.CreateArchive(sampleRecord("/records/a.mp4", now))
	if err != nil {
		t.Fatalf("CreateArchive failed: %v", err)
	}
	if err := db.MarkArchiveFailed(id, "upload error"); err != nil {
		t.Fatalf("MarkArchiveFailed failed: %v", err)
	}

	// A retried pipeline re-registers the same file: the row flips back to
	// pending and the error is cleared.
	if _, err := db.CreateArchive(sampleRecord("/records/a.mp4", now)); err != nil {
		t.Fatalf("CreateArchive on existing path failed: %v", err)
	}

	record, err := db.GetArchiveByLocalPath("/records/a.mp4")
	if err != nil {
		t.Fatalf("GetArchiveByLocalPath failed: %v", err)
	}
	if record.Status != StatusPending || record.ErrorMessage != "" {
		t.Errorf("row not reset: status=%s error=%q", record.Status, record.ErrorMessage)
	}
}

func TestMarkArchiveUploaded(t *testing.T) {
	db := testDB(t)
	now := time.Now().Truncate(time.Second)

	id, _ := db.CreateArchive(sampleRecord("/records/a.mp4", now))
	if err := db.MarkArchiveUploaded(id, "records/14-03-24/cam/a.mp4", now); err != nil {
		t.Fatalf("MarkArchiveUploaded failed: %v", err)
	}

	record, _ := db.GetArchiveByLocalPath("/records/a.mp4")
	if record.Status != StatusUploaded {
		t.Errorf("status: got %s", record.Status)
	}
	if record.RemotePath != "records/14-03-24/cam/a.mp4" {
		t.Errorf("remote path: got %q", record.RemotePath)
	}
	if record.UploadedAt == nil || !record.UploadedAt.Equal(now) {
		t.Errorf("uploaded_at: got %v, want %v", record.UploadedAt, now)
	}
}

func TestGetArchivesByStatusOldestFirst(t *testing.T) {
	db := testDB(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	for i, path := range []string{"/records/c.mp4", "/records/a.mp4", "/records/b.mp4"} {
		if _, err := db.CreateArchive(sampleRecord(path, base.Add(time.Duration(2-i)*time.Minute))); err != nil {
			t.Fatalf("CreateArchive failed: %v", err)
		}
	}

	records, err := db.GetArchivesByStatus(StatusPending, 10)
	if err != nil {
		t.Fatalf("GetArchivesByStatus failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 pending records, got %d", len(records))
	}
	// Oldest created first: b, a, c.
	want := []string{"/records/b.mp4", "/records/a.mp4", "/records/c.mp4"}
	for i, record := range records {
		if record.LocalPath != want[i] {
			t.Errorf("position %d: got %s, want %s", i, record.LocalPath, want[i])
		}
	}
}

func TestDeleteArchivesOlderThanKeepsPendingRows(t *testing.T) {
	db := testDB(t)
	old := time.Now().AddDate(0, 0, -30).Truncate(time.Second)

	uploadedID, _ := db.CreateArchive(sampleRecord("/records/old-uploaded.mp4", old))
	db.MarkArchiveUploaded(uploadedID, "records/x", old)
	db.CreateArchive(sampleRecord("/records/old-pending.mp4", old))

	if err := db.DeleteArchivesOlderThan(time.Now().AddDate(0, 0, -7)); err != nil {
		t.Fatalf("DeleteArchivesOlderThan failed: %v", err)
	}

	if record, _ := db.GetArchiveByLocalPath("/records/old-uploaded.mp4"); record != nil {
		t.Errorf("old uploaded row should have been trimmed")
	}
	if record, _ := db.GetArchiveByLocalPath("/records/old-pending.mp4"); record == nil {
		t.Errorf("pending row must survive the trim regardless of age")
	}
}
