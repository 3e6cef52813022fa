package database

import (
	"time"
)

// ArchiveStatus represents the current state of a merged hour file
type ArchiveStatus string

const (
	StatusPending  ArchiveStatus = "pending"  // Merged locally, not yet uploaded
	StatusUploaded ArchiveStatus = "uploaded" // Durably stored off-box, local copy removed
	StatusFailed   ArchiveStatus = "failed"   // Upload failed, local copy kept for retry
)

// ArchiveRecord is the ledger entry for one merged camera-hour file.
type ArchiveRecord struct {
	ID           int64         `json:"id"`
	CameraName   string        `json:"cameraName"`
	Date         string        `json:"date"` // DD-MM-YY
	Hour         string        `json:"hour"` // HHh
	LocalPath    string        `json:"localPath"`
	RemotePath   string        `json:"remotePath"`
	Size         int64         `json:"size"`
	Status       ArchiveStatus `json:"status"`
	ErrorMessage string        `json:"errorMessage"`
	CreatedAt    time.Time     `json:"createdAt"`
	UploadedAt   *time.Time    `json:"uploadedAt"`
}

// Database defines the interface for archive ledger operations
type Database interface {
	// Archive operations
	CreateArchive(record ArchiveRecord) (int64, error)
	GetArchiveByLocalPath(localPath string) (*ArchiveRecord, error)
	ListArchives(limit, offset int) ([]ArchiveRecord, error)

	// Status operations
	GetArchivesByStatus(status ArchiveStatus, limit int) ([]ArchiveRecord, error)
	MarkArchiveUploaded(id int64, remotePath string, uploadedAt time.Time) error
	MarkArchiveFailed(id int64, errorMsg string) error

	// Helper operations
	DeleteArchivesOlderThan(cutoff time.Time) error
	Close() error
}
