package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config contains all configuration for the recorder
type Config struct {

	// Intercom platform credentials
	CatalogLogin    string
	CatalogPassword string
	DeviceUID       string
	UserAgent       string

	// Camera allow-list (lowercase names); only matching streams are recorded
	CameraNames []string

	// Recording Configuration
	StoragePath     string // local root for date/camera/hour directories
	SegmentDuration time.Duration
	VideoExtension  string

	// Remote storage configuration (S3-compatible)
	RemoteRoot    string // top-level prefix holding date folders
	RetentionDays int
	S3AccessKey   string
	S3SecretKey   string
	S3AccountID   string
	S3Bucket      string
	S3Endpoint    string
	S3Region      string

	// Server Configuration
	ServerPort string

	// Database Configuration
	DatabasePath string

	// Disk monitoring
	MinFreeSpaceGB float64
}

// DefaultUserAgent mirrors the mobile client the intercom platform expects.
const DefaultUserAgent = "domophone-ios/315645 CFNetwork/1390 Darwin/22.0.0"

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	cfg := Config{
		CatalogLogin:    getEnv("CATALOG_LOGIN", ""),
		CatalogPassword: getEnv("CATALOG_PASSWORD", ""),
		DeviceUID:       getEnv("DEVICE_UID", ""),
		UserAgent:       getEnv("USER_AGENT", DefaultUserAgent),
		StoragePath:     getEnv("STORAGE_PATH", "./records"),
		VideoExtension:  getEnv("VIDEO_EXTENSION", ".mp4"),
		RemoteRoot:      getEnv("REMOTE_ROOT", "records"),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3AccountID:     getEnv("S3_ACCOUNT_ID", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        getEnv("S3_REGION", "auto"),
		ServerPort:      getEnv("SERVER_PORT", "3000"),
		DatabasePath:    getEnv("DATABASE_PATH", "./data/recorder.db"),
	}

	if cfg.DeviceUID == "" {
		cfg.DeviceUID = uuid.NewString()
		log.Printf("No DEVICE_UID configured, generated %s", cfg.DeviceUID)
	}

	for _, name := range strings.Split(getEnv("CAMERA_NAMES", ""), ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			cfg.CameraNames = append(cfg.CameraNames, name)
		}
	}

	segmentSeconds := getEnvInt("SEGMENT_DURATION_SECONDS", 150)
	cfg.SegmentDuration = time.Duration(segmentSeconds) * time.Second

	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 7)
	cfg.MinFreeSpaceGB = getEnvFloat("MIN_FREE_SPACE_GB", 2.0)

	log.Printf("Loaded configuration with %d allow-listed cameras", len(cfg.CameraNames))
	log.Printf("Storage Path: %s", cfg.StoragePath)
	log.Printf("Segment duration: %s, retention: %d days", cfg.SegmentDuration, cfg.RetentionDays)
	log.Printf("Server running on port %s", cfg.ServerPort)

	return cfg
}

// EnsurePaths creates necessary paths
func EnsurePaths(cfg Config) {
	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		log.Printf("Failed to create storage directory %s: %v", cfg.StoragePath, err)
	}

	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Printf("Failed to create database directory %s: %v", dbDir, err)
	}
}

// AllowsCamera reports whether the camera name passes the allow-list.
// An empty allow-list rejects everything: recording every stream on the
// account is never what we want.
func (cfg Config) AllowsCamera(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, allowed := range cfg.CameraNames {
		if allowed == lower {
			return true
		}
	}
	return false
}

// getEnv returns environment variable or fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using %.1f", key, value, fallback)
		return fallback
	}
	return f
}
