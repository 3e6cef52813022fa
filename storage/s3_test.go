package storage

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"records/14-03-24/cam", "records/14-03-24/cam"},
		{"/records/14-03-24/cam", "records/14-03-24/cam"},
		{"records\\14-03-24\\cam", "records/14-03-24/cam"},
	}
	for _, tc := range cases {
		if got := normalizeKey(tc.in); got != tc.want {
			t.Errorf("normalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewS3StorageDerivesR2Endpoint(t *testing.T) {
	store, err := NewS3Storage(S3Config{
		AccessKey: "key",
		SecretKey: "secret",
		AccountID: "abc123",
		Bucket:    "dvr",
	})
	if err != nil {
		t.Fatalf("NewS3Storage failed: %v", err)
	}
	if got := store.config.Endpoint; got != "https://abc123.r2.cloudflarestorage.com" {
		t.Errorf("endpoint: got %q", got)
	}
	if got := store.config.Region; got != "auto" {
		t.Errorf("region default: got %q", got)
	}
}

func TestNewS3StorageKeepsExplicitEndpoint(t *testing.T) {
	store, err := NewS3Storage(S3Config{
		AccessKey: "key",
		SecretKey: "secret",
		AccountID: "abc123",
		Bucket:    "dvr",
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewS3Storage failed: %v", err)
	}
	if got := store.config.Endpoint; got != "http://localhost:9000" {
		t.Errorf("endpoint: got %q", got)
	}
	if got := store.config.Region; got != "us-east-1" {
		t.Errorf("region: got %q", got)
	}
}
