package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"intercom-dvr/config"
)

// fakeFFmpeg simulates the external tool on plain files. Repair copies the
// input unless its content marks it as corrupt ("corrupt" fails with the
// invalid-data class, "broken" with an unusual error). Concat joins file
// contents in input order.
type fakeFFmpeg struct {
	repairCalls []string
	concatCalls [][]string
	concatErr   error
}

func (f *fakeFFmpeg) Capture(ctx context.Context, sourceURL, outputPath string, maxDuration time.Duration) error {
	return os.WriteFile(outputPath, []byte("captured:"+sourceURL), 0644)
}

func (f *fakeFFmpeg) Repair(inputPath, outputPath string) error {
	f.repairCalls = append(f.repairCalls, inputPath)
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	switch strings.TrimSpace(string(data)) {
	case "corrupt":
		return fmt.Errorf("%w: ffmpeg repair failed", ErrInvalidData)
	case "broken":
		return errors.New("ffmpeg repair failed: I/O error")
	}
	return os.WriteFile(outputPath, data, 0644)
}

func (f *fakeFFmpeg) Concat(inputPaths []string, outputPath string) error {
	f.concatCalls = append(f.concatCalls, append([]string(nil), inputPaths...))
	if f.concatErr != nil {
		return f.concatErr
	}
	var merged []byte
	for _, input := range inputPaths {
		data, err := os.ReadFile(input)
		if err != nil {
			return err
		}
		merged = append(merged, data...)
	}
	return os.WriteFile(outputPath, merged, 0644)
}

func assemblerFixture(t *testing.T, contents []string) (*Assembler, *fakeFFmpeg, string, time.Time) {
	t.Helper()
	cfg := config.Config{
		StoragePath:    t.TempDir(),
		VideoExtension: ".mp4",
	}
	hour := mustTime(t, "14-03-24 15:00:00")
	bucket := BucketDir(cfg.StoragePath, "cam", hour)
	if err := os.MkdirAll(bucket, 0755); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	for i, content := range contents {
		name := filepath.Join(bucket, fmt.Sprintf("cam_14-03-24_15h_%d.mp4", i+1))
		if err := os.WriteFile(name, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create segment: %v", err)
		}
	}
	ffmpeg := &fakeFFmpeg{}
	return NewAssembler(cfg, ffmpeg), ffmpeg, bucket, hour
}

func TestAssembleMergesInSequenceOrder(t *testing.T) {
	assembler, ffmpeg, bucket, hour := assemblerFixture(t, []string{"one", "two", "three"})

	mergedPath, err := assembler.Assemble("cam", hour)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if got := filepath.Base(mergedPath); got != "cam_14-03-24_15h.mp4" {
		t.Errorf("merged file name: got %s", got)
	}

	data, err := os.ReadFile(mergedPath)
	if err != nil {
		t.Fatalf("merged file missing: %v", err)
	}
	if string(data) != "onetwothree" {
		t.Errorf("merged content out of order: %q", data)
	}

	// Consumed segments are gone, only the merged file remains.
	entries, _ := os.ReadDir(bucket)
	if len(entries) != 1 || entries[0].Name() != "cam_14-03-24_15h.mp4" {
		t.Errorf("bucket not cleaned up, entries: %v", entries)
	}
	if len(ffmpeg.concatCalls) != 1 || len(ffmpeg.concatCalls[0]) != 3 {
		t.Errorf("unexpected concat calls: %v", ffmpeg.concatCalls)
	}
}

func TestAssembleDiscardsInvalidSegment(t *testing.T) {
	assembler, _, bucket, hour := assemblerFixture(t, []string{"one", "corrupt", "three"})

	mergedPath, err := assembler.Assemble("cam", hour)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	data, err := os.ReadFile(mergedPath)
	if err != nil {
		t.Fatalf("merged file missing: %v", err)
	}
	if string(data) != "onethree" {
		t.Errorf("expected merged content from segments 1 and 3 only, got %q", data)
	}

	if _, err := os.Stat(filepath.Join(bucket, "cam_14-03-24_15h_2.mp4")); !os.IsNotExist(err) {
		t.Errorf("corrupt segment should have been deleted")
	}
	for _, name := range []string{"cam_14-03-24_15h_1.mp4", "cam_14-03-24_15h_3.mp4"} {
		if _, err := os.Stat(filepath.Join(bucket, name)); !os.IsNotExist(err) {
			t.Errorf("consumed segment %s should have been deleted after success", name)
		}
	}
}

func TestAssembleFatalRepairPreservesSegments(t *testing.T) {
	assembler, ffmpeg, bucket, hour := assemblerFixture(t, []string{"one", "broken", "three"})

	_, err := assembler.Assemble("cam", hour)
	if err == nil {
		t.Fatal("expected fatal error for unusual repair failure")
	}
	if errors.Is(err, ErrInvalidData) || errors.Is(err, ErrEmptyBucket) {
		t.Fatalf("error misclassified: %v", err)
	}

	// All three originals stay on disk untouched.
	for i := 1; i <= 3; i++ {
		name := filepath.Join(bucket, fmt.Sprintf("cam_14-03-24_15h_%d.mp4", i))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("segment %d missing after fatal repair failure: %v", i, err)
		}
	}
	if len(ffmpeg.concatCalls) != 0 {
		t.Errorf("concat must not run after a fatal repair failure")
	}
}

func TestAssembleConcatFailurePreservesSegments(t *testing.T) {
	assembler, ffmpeg, bucket, hour := assemblerFixture(t, []string{"one", "two"})
	ffmpeg.concatErr = errors.New("ffmpeg concat failed: muxer error")

	_, err := assembler.Assemble("cam", hour)
	if err == nil {
		t.Fatal("expected error when concat fails")
	}

	for i := 1; i <= 2; i++ {
		name := filepath.Join(bucket, fmt.Sprintf("cam_14-03-24_15h_%d.mp4", i))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("segment %d missing after concat failure: %v", i, err)
		}
	}
	if _, err := os.Stat(filepath.Join(bucket, "cam_14-03-24_15h.mp4")); !os.IsNotExist(err) {
		t.Errorf("merged file should not remain after concat failure")
	}
}

func TestAssembleEmptyBucket(t *testing.T) {
	assembler, _, _, hour := assemblerFixture(t, nil)

	_, err := assembler.Assemble("cam", hour)
	if !errors.Is(err, ErrEmptyBucket) {
		t.Fatalf("expected ErrEmptyBucket, got %v", err)
	}
}

func TestAssembleAllSegmentsUnusable(t *testing.T) {
	assembler, _, bucket, hour := assemblerFixture(t, []string{"corrupt", "corrupt"})

	_, err := assembler.Assemble("cam", hour)
	if !errors.Is(err, ErrEmptyBucket) {
		t.Fatalf("expected ErrEmptyBucket when every segment is unusable, got %v", err)
	}

	entries, _ := os.ReadDir(bucket)
	if len(entries) != 0 {
		t.Errorf("unusable segments should have been deleted, entries: %v", entries)
	}
}
