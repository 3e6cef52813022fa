package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Config holds configuration for an S3-compatible bucket (Cloudflare R2,
// MinIO, AWS).
type S3Config struct {
	AccessKey string
	SecretKey string
	AccountID string
	Bucket    string
	Endpoint  string
	Region    string
}

// Number of attempts for the Upload retry loop
const maxUploadAttempts = 3

// S3Storage implements RemoteStorage over an S3-compatible bucket. Folders
// are emulated with zero-byte marker objects and key prefixes.
type S3Storage struct {
	config   S3Config
	session  *session.Session
	client   *s3.S3
	uploader *s3manager.Uploader
}

// NewS3Storage creates a new S3Storage instance
func NewS3Storage(config S3Config) (*S3Storage, error) {
	if config.Region == "" {
		config.Region = "auto"
	}

	// Derive the R2 endpoint from the account ID when no full endpoint is given
	if config.Endpoint == "" && config.AccountID != "" {
		config.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", config.AccountID)
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
		Endpoint:    aws.String(config.Endpoint),
		Region:      aws.String(config.Region),
		// Force path style addressing for compatibility with the S3 API
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	client := s3.New(sess)

	// Single-connection uploader: part size 10 MB, no parallel parts, so
	// only one HTTP connection is active at a time on limited uplinks.
	uploader := s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 1
	})

	return &S3Storage{
		config:   config,
		session:  sess,
		client:   client,
		uploader: uploader,
	}, nil
}

// Mkdir creates a zero-byte folder marker. S3 namespaces are flat, so an
// existing marker is simply overwritten; "already exists" can never fail.
func (s *S3Storage) Mkdir(path string) error {
	key := strings.TrimSuffix(normalizeKey(path), "/") + "/"
	_, err := s.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return fmt.Errorf("failed to create folder %s: %v", path, err)
	}
	return nil
}

// Upload copies a local file to the remote path, retrying with exponential
// backoff.
func (s *S3Storage) Upload(localPath, remotePath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %v", localPath, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %v", err)
	}

	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".mp4":
		contentType = "video/mp4"
	case ".avi":
		contentType = "video/x-msvideo"
	case ".mkv":
		contentType = "video/x-matroska"
	}

	metadata := map[string]*string{
		"OriginalFileName": aws.String(filepath.Base(localPath)),
		"UploadedAt":       aws.String(time.Now().Format(time.RFC3339)),
		"FileSize":         aws.String(fmt.Sprintf("%d", fileInfo.Size())),
	}

	log.Printf("Uploading file (%.2f MB) via single-connection uploader: %s", float64(fileInfo.Size())/1024/1024, localPath)

	var lastErr error
	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		if _, err := file.Seek(0, 0); err != nil {
			return fmt.Errorf("failed to seek to beginning of file: %v", err)
		}

		_, lastErr = s.uploader.Upload(&s3manager.UploadInput{
			Bucket:      aws.String(s.config.Bucket),
			Key:         aws.String(normalizeKey(remotePath)),
			Body:        file,
			ContentType: aws.String(contentType),
			Metadata:    metadata,
		})

		if lastErr == nil {
			break
		}

		log.Printf("Upload attempt %d/%d failed for %s: %v", attempt, maxUploadAttempts, localPath, lastErr)
		time.Sleep(time.Duration(1<<uint(attempt)) * time.Second)
	}
	if lastErr != nil {
		return fmt.Errorf("failed to upload file after %d attempts: %v", maxUploadAttempts, lastErr)
	}

	return nil
}

// Move renames a remote object via copy+delete; S3 has no native rename.
func (s *S3Storage) Move(remotePath, newRemotePath string) error {
	srcKey := normalizeKey(remotePath)
	dstKey := normalizeKey(newRemotePath)

	_, err := s.client.CopyObject(&s3.CopyObjectInput{
		Bucket:     aws.String(s.config.Bucket),
		CopySource: aws.String(s.config.Bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %v", remotePath, newRemotePath, err)
	}

	_, err = s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete source object %s after copy: %v", remotePath, err)
	}
	return nil
}

// ListFolders lists the folders directly under root using a delimited
// prefix listing.
func (s *S3Storage) ListFolders(root string) ([]Folder, error) {
	prefix := strings.TrimSuffix(normalizeKey(root), "/") + "/"

	var folders []Folder
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.config.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}

	err := s.client.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(cp.Prefix), prefix), "/")
			if name != "" {
				folders = append(folders, Folder{Name: name})
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folders under %s: %v", root, err)
	}

	return folders, nil
}

// Remove deletes a remote path and everything under it. S3 deletes are
// always permanent; the flag exists for backends with a trash tier.
func (s *S3Storage) Remove(path string, permanent bool) error {
	prefix := strings.TrimSuffix(normalizeKey(path), "/") + "/"

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(prefix),
	}

	var deleteErr error
	err := s.client.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		if len(page.Contents) == 0 {
			return true
		}
		objects := make([]*s3.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, &s3.ObjectIdentifier{Key: obj.Key})
		}
		_, deleteErr = s.client.DeleteObjects(&s3.DeleteObjectsInput{
			Bucket: aws.String(s.config.Bucket),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		return deleteErr == nil
	})
	if err != nil {
		return fmt.Errorf("failed to list objects for removal under %s: %v", path, err)
	}
	if deleteErr != nil {
		return fmt.Errorf("failed to delete objects under %s: %v", path, deleteErr)
	}

	// Also drop the bare object/marker at the path itself, if any.
	_, err = s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(strings.TrimSuffix(normalizeKey(path), "/")),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %v", path, err)
	}
	return nil
}

// normalizeKey converts a local-style path into an S3 key.
func normalizeKey(path string) string {
	return strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "/")
}
