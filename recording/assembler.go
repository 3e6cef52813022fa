package recording

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"intercom-dvr/config"
)

// ErrEmptyBucket is returned when a camera-hour has no segments to assemble.
// Callers treat it as a skip, not a failure.
var ErrEmptyBucket = errors.New("no segments in bucket")

// Assembler merges a closed camera-hour bucket into one playable file.
// It must only be invoked after the capture session writing into the bucket
// has exited; ownership of the directory passes to the assembler by that
// temporal handoff, there is no lock.
type Assembler struct {
	cfg    config.Config
	ffmpeg FFmpeg
}

// NewAssembler creates an hourly assembler using the given ffmpeg runner.
func NewAssembler(cfg config.Config, ffmpeg FFmpeg) *Assembler {
	return &Assembler{cfg: cfg, ffmpeg: ffmpeg}
}

// Assemble repairs and concatenates the segments of the camera-hour
// identified by hour, returning the merged file path.
//
// Segments whose repair fails with the invalid-data class are deleted and
// excluded: they were empty or corrupt leftovers of a failed capture. Any
// other repair or concat failure aborts the run with every original segment
// left on disk for manual inspection. Originals are deleted only after the
// merged file exists.
func (a *Assembler) Assemble(camera string, hour time.Time) (string, error) {
	camera = SanitizeCameraName(camera)
	bucket := BucketDir(a.cfg.StoragePath, camera, hour)

	segments, err := ListSegments(bucket, a.cfg.VideoExtension)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyBucket, bucket)
	}

	log.Printf("[%s] Assembling %d segment(s) in %s", camera, len(segments), bucket)

	repairDir := filepath.Join(bucket, ".repair")
	if err := os.MkdirAll(repairDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create repair directory: %w", err)
	}
	defer os.RemoveAll(repairDir)

	var repaired []string
	var consumed []string
	for _, seg := range segments {
		repairedPath := filepath.Join(repairDir, filepath.Base(seg.Path))
		if err := a.ffmpeg.Repair(seg.Path, repairedPath); err != nil {
			if errors.Is(err, ErrInvalidData) {
				log.Printf("[%s] Discarding unusable segment %s: %v", camera, seg.Path, err)
				os.Remove(repairedPath)
				if rmErr := os.Remove(seg.Path); rmErr != nil {
					log.Printf("[%s] Failed to remove unusable segment %s: %v", camera, seg.Path, rmErr)
				}
				continue
			}
			return "", fmt.Errorf("repair failed for %s: %w", seg.Path, err)
		}

		info, err := os.Stat(repairedPath)
		if err != nil || info.Size() == 0 {
			log.Printf("[%s] Discarding segment %s: repair produced no output", camera, seg.Path)
			os.Remove(repairedPath)
			os.Remove(seg.Path)
			continue
		}

		repaired = append(repaired, repairedPath)
		consumed = append(consumed, seg.Path)
	}

	if len(repaired) == 0 {
		return "", fmt.Errorf("%w: all segments in %s were unusable", ErrEmptyBucket, bucket)
	}

	mergedPath := filepath.Join(bucket, MergedFileName(camera, hour, a.cfg.VideoExtension))
	if err := a.ffmpeg.Concat(repaired, mergedPath); err != nil {
		os.Remove(mergedPath)
		return "", fmt.Errorf("concat failed for %s: %w", bucket, err)
	}

	for _, path := range consumed {
		if err := os.Remove(path); err != nil {
			log.Printf("[%s] Failed to remove consumed segment %s: %v", camera, path, err)
		}
	}

	log.Printf("[%s] Assembled %s from %d segment(s)", camera, mergedPath, len(repaired))
	return mergedPath, nil
}
