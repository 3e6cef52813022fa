package recording

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"intercom-dvr/catalog"
	"intercom-dvr/config"
)

// Supervisor drives one capture cycle across all discovered streams. Every
// stream records into its own segment file, all sessions run concurrently,
// and RunCycle returns only after the last one has finished. That join is
// what guarantees the assembler never observes a bucket with a live writer.
type Supervisor struct {
	cfg    config.Config
	ffmpeg FFmpeg
	now    func() time.Time
}

// NewSupervisor creates a capture supervisor using the given ffmpeg runner.
func NewSupervisor(cfg config.Config, ffmpeg FFmpeg) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		ffmpeg: ffmpeg,
		now:    time.Now,
	}
}

// RunCycle captures one segment per stream and blocks until every session
// has exited. Session failures are logged and never abort siblings; a failed
// session just leaves a short or empty segment for the assembler to discard.
// Returns the number of sessions that completed without error.
func (s *Supervisor) RunCycle(ctx context.Context, streams []catalog.Stream) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for _, stream := range streams {
		wg.Add(1)
		go func(stream catalog.Stream) {
			defer wg.Done()
			if err := s.captureSegment(ctx, stream); err != nil {
				log.Printf("[%s] Capture session failed: %v", stream.Name, err)
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}(stream)
	}

	wg.Wait()
	return succeeded
}

// captureSegment records a single bounded segment for one stream. The
// duration bound is the configured ceiling clipped to the top of the current
// hour, so a segment never spans two camera-hours.
func (s *Supervisor) captureSegment(ctx context.Context, stream catalog.Stream) error {
	now := s.now()

	// With less than a second left there is nothing worth recording, and a
	// rounded-up bound would push the segment past the hour top.
	bound := s.cfg.SegmentDuration
	untilHourTop := now.Truncate(time.Hour).Add(time.Hour).Sub(now)
	if untilHourTop < time.Second {
		log.Printf("[%s] Skipping capture, hour rolls over in %s", stream.Name, untilHourTop)
		return nil
	}
	if untilHourTop < bound {
		bound = untilHourTop
	}

	outputPath, err := AllocateSegmentPath(s.cfg.StoragePath, stream.Name, now, s.cfg.VideoExtension)
	if err != nil {
		return err
	}

	log.Printf("[%s] Start capture into %s (bound %s)", stream.Name, outputPath, bound)

	if err := s.ffmpeg.Capture(ctx, stream.URL, outputPath, bound); err != nil {
		return err
	}

	if info, err := os.Stat(outputPath); err == nil {
		log.Printf("[%s] Recorded segment %s (%.2f MB)", stream.Name, outputPath, float64(info.Size())/(1024*1024))
	} else {
		log.Printf("[%s] Capture exited but segment is missing: %v", stream.Name, err)
	}
	return nil
}
