package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB implements the Database interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database instance
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %v", err)
	}

	if err := initTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %v", err)
	}

	return &SQLiteDB{db: db}, nil
}

// initTables creates the necessary tables if they don't exist
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS archives (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			camera_name TEXT NOT NULL,
			date TEXT NOT NULL,
			hour TEXT NOT NULL,
			local_path TEXT NOT NULL UNIQUE,
			remote_path TEXT,
			size INTEGER DEFAULT 0,
			status TEXT NOT NULL,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL,
			uploaded_at TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_archives_status ON archives(status)`)
	return err
}

// CreateArchive inserts a ledger row for a freshly merged hour file. If a
// row for the same local path already exists (a retried pipeline), it is
// reset to pending instead.
func (s *SQLiteDB) CreateArchive(record ArchiveRecord) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO archives (camera_name, date, hour, local_path, remote_path, size, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_path) DO UPDATE SET
			status = excluded.status,
			size = excluded.size,
			error_message = ''
	`,
		record.CameraName, record.Date, record.Hour, record.LocalPath,
		record.RemotePath, record.Size, record.Status, record.ErrorMessage, record.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive record: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get archive record id: %v", err)
	}
	return id, nil
}

// GetArchiveByLocalPath returns the ledger row for a local merged file, or
// nil when none exists.
func (s *SQLiteDB) GetArchiveByLocalPath(localPath string) (*ArchiveRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, camera_name, date, hour, local_path, COALESCE(remote_path, ''), size, status, COALESCE(error_message, ''), created_at, uploaded_at
		FROM archives WHERE local_path = ?
	`, localPath)

	record, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archive record: %v", err)
	}
	return record, nil
}

// ListArchives returns ledger rows newest first.
func (s *SQLiteDB) ListArchives(limit, offset int) ([]ArchiveRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, camera_name, date, hour, local_path, COALESCE(remote_path, ''), size, status, COALESCE(error_message, ''), created_at, uploaded_at
		FROM archives ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive records: %v", err)
	}
	defer rows.Close()

	return collectArchives(rows)
}

// GetArchivesByStatus returns ledger rows in the given state, oldest first
// so retries drain the backlog in order.
func (s *SQLiteDB) GetArchivesByStatus(status ArchiveStatus, limit int) ([]ArchiveRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, camera_name, date, hour, local_path, COALESCE(remote_path, ''), size, status, COALESCE(error_message, ''), created_at, uploaded_at
		FROM archives WHERE status = ? ORDER BY created_at ASC LIMIT ?
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive records by status: %v", err)
	}
	defer rows.Close()

	return collectArchives(rows)
}

// MarkArchiveUploaded flips a row to uploaded after the remote store
// confirmed the upload.
func (s *SQLiteDB) MarkArchiveUploaded(id int64, remotePath string, uploadedAt time.Time) error {
	_, err := s.db.Exec(`
		UPDATE archives SET status = ?, remote_path = ?, uploaded_at = ?, error_message = '' WHERE id = ?
	`, StatusUploaded, remotePath, uploadedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark archive uploaded: %v", err)
	}
	return nil
}

// MarkArchiveFailed records an upload failure, keeping the row eligible for
// the retry cron.
func (s *SQLiteDB) MarkArchiveFailed(id int64, errorMsg string) error {
	_, err := s.db.Exec(`
		UPDATE archives SET status = ?, error_message = ? WHERE id = ?
	`, StatusFailed, errorMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark archive failed: %v", err)
	}
	return nil
}

// DeleteArchivesOlderThan trims uploaded ledger rows past the retention
// window; pending and failed rows are kept regardless of age.
func (s *SQLiteDB) DeleteArchivesOlderThan(cutoff time.Time) error {
	_, err := s.db.Exec(`
		DELETE FROM archives WHERE status = ? AND created_at < ?
	`, StatusUploaded, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old archive records: %v", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArchive(row rowScanner) (*ArchiveRecord, error) {
	var record ArchiveRecord
	var uploadedAt sql.NullTime
	err := row.Scan(
		&record.ID, &record.CameraName, &record.Date, &record.Hour,
		&record.LocalPath, &record.RemotePath, &record.Size, &record.Status,
		&record.ErrorMessage, &record.CreatedAt, &uploadedAt,
	)
	if err != nil {
		return nil, err
	}
	if uploadedAt.Valid {
		record.UploadedAt = &uploadedAt.Time
	}
	return &record, nil
}

func collectArchives(rows *sql.Rows) ([]ArchiveRecord, error) {
	var records []ArchiveRecord
	for rows.Next() {
		record, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archive record: %v", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}
