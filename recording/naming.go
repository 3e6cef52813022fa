package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Local layout: root/DD-MM-YY/camera/HHh/camera_DD-MM-YY_HHh_N.ext
const (
	DateLayout = "02-01-06"
	HourLayout = "15h"
)

// Segment is one recorded file inside a camera-hour bucket.
type Segment struct {
	Path string
	Seq  int
}

// SanitizeCameraName makes a camera name safe for file paths. Stream names
// from the catalog may contain spaces.
func SanitizeCameraName(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

// BucketDir returns the directory holding all segments for one camera-hour.
func BucketDir(root, camera string, t time.Time) string {
	return filepath.Join(root, t.Format(DateLayout), camera, t.Format(HourLayout))
}

// MergedFileName returns the name of the assembled hour file for a bucket,
// i.e. the segment name with the sequence suffix stripped.
func MergedFileName(camera string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s%s", camera, t.Format(DateLayout), t.Format(HourLayout), ext)
}

// AllocateSegmentPath reserves the next segment path for a camera at the
// given time. The sequence number is derived from the files already present
// in the hour directory (max existing + 1, or 1 for an empty bucket) so that
// numbering survives restarts without any persisted counter. Only one
// capture session per camera may be active at a time; the directory scan is
// not safe against concurrent allocations for the same bucket.
func AllocateSegmentPath(root, camera string, now time.Time, ext string) (string, error) {
	camera = SanitizeCameraName(camera)
	bucket := BucketDir(root, camera, now)
	if err := os.MkdirAll(bucket, 0755); err != nil {
		return "", fmt.Errorf("failed to create bucket directory %s: %w", bucket, err)
	}

	segments, err := ListSegments(bucket, ext)
	if err != nil {
		return "", err
	}

	next := 1
	for _, seg := range segments {
		if seg.Seq >= next {
			next = seg.Seq + 1
		}
	}

	name := fmt.Sprintf("%s_%s_%s_%d%s", camera, now.Format(DateLayout), now.Format(HourLayout), next, ext)
	return filepath.Join(bucket, name), nil
}

// ListSegments returns the segments in a bucket directory sorted by sequence
// number. Sequence order is the sole determinant of playback order. Files
// without a trailing numeric suffix (such as an already-merged hour file)
// are ignored.
func ListSegments(bucket, ext string) ([]Segment, error) {
	entries, err := os.ReadDir(bucket)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list bucket directory %s: %w", bucket, err)
	}

	var segments []Segment
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		seq, ok := parseSequence(entry.Name(), ext)
		if !ok {
			continue
		}
		segments = append(segments, Segment{
			Path: filepath.Join(bucket, entry.Name()),
			Seq:  seq,
		})
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].Seq < segments[j].Seq
	})
	return segments, nil
}

// parseSequence extracts the trailing _N sequence number from a segment
// file name.
func parseSequence(name, ext string) (int, bool) {
	stem := strings.TrimSuffix(name, ext)
	idx := strings.LastIndex(stem, "_")
	if idx < 0 || idx == len(stem)-1 {
		return 0, false
	}
	seq, err := strconv.Atoi(stem[idx+1:])
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}
