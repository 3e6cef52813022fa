package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"intercom-dvr/catalog"
	"intercom-dvr/monitoring"
	"intercom-dvr/recording"
)

// Catalog is the external stream catalog: authentication and discovery.
type Catalog interface {
	Authenticate(ctx context.Context) (string, error)
	ListStreams(ctx context.Context, token string) ([]catalog.Stream, error)
}

// CaptureRunner drives one concurrent capture cycle and blocks until every
// session has exited.
type CaptureRunner interface {
	RunCycle(ctx context.Context, streams []catalog.Stream) int
}

// HourAssembler merges one closed camera-hour bucket.
type HourAssembler interface {
	Assemble(camera string, hour time.Time) (string, error)
}

// Archiver uploads merged files and runs the retention sweep.
type Archiver interface {
	ArchiveDate(ctx context.Context, day time.Time) error
	RetentionSweep(ctx context.Context) error
}

// DiskChecker reports free space on the recording volume.
type DiskChecker interface {
	Check() (monitoring.DiskStatus, error)
}

// Auth retry backoff bounds
const (
	initialAuthBackoff = time.Second
	maxAuthBackoff     = time.Minute
)

// Status is a point-in-time snapshot of the controller, served by the
// status API.
type Status struct {
	Cameras           []string              `json:"cameras"`
	CycleCount        int64                 `json:"cycleCount"`
	SegmentsLastCycle int                   `json:"segmentsLastCycle"`
	LastCycleAt       time.Time             `json:"lastCycleAt"`
	PipelineActive    bool                  `json:"pipelineActive"`
	LastPipelineHour  string                `json:"lastPipelineHour"`
	Disk              monitoring.DiskStatus `json:"disk"`
}

// Controller is the top-level control loop: authenticate, discover streams,
// drive capture cycles, and hand closed hours to the assemble+archive
// pipeline without ever blocking capture on it. At most one pipeline is in
// flight; its completion handle is owned exclusively by the control loop.
type Controller struct {
	catalog   Catalog
	capture   CaptureRunner
	assembler HourAssembler
	archiver  Archiver
	disk      DiskChecker
	now       func() time.Time

	// archiveDone is non-nil while an assemble+archive pipeline may still
	// be running. pendingHours holds closed hours whose pipeline could not
	// start yet. Only the control loop touches either.
	archiveDone  chan struct{}
	pendingHours []time.Time

	mu     sync.Mutex
	status Status
}

// NewController wires the control loop to its collaborators.
func NewController(cat Catalog, capture CaptureRunner, assembler HourAssembler, archiver Archiver, disk DiskChecker) *Controller {
	return &Controller{
		catalog:   cat,
		capture:   capture,
		assembler: assembler,
		archiver:  archiver,
		disk:      disk,
		now:       time.Now,
	}
}

// Run executes the control loop until ctx is cancelled. Authentication
// failures retry with bounded exponential backoff; discovery failures drop
// the session and re-authenticate.
func (c *Controller) Run(ctx context.Context) {
	backoff := initialAuthBackoff
	for ctx.Err() == nil {
		token, err := c.catalog.Authenticate(ctx)
		if err != nil {
			log.Printf("Authentication failed, retrying in %s: %v", backoff, err)
			sleepCtx(ctx, backoff)
			backoff *= 2
			if backoff > maxAuthBackoff {
				backoff = maxAuthBackoff
			}
			continue
		}
		backoff = initialAuthBackoff
		c.sessionLoop(ctx, token)
	}
}

// sessionLoop drives capture cycles under one bearer token. It returns when
// discovery fails, discarding the session.
func (c *Controller) sessionLoop(ctx context.Context, token string) {
	for ctx.Err() == nil {
		streams, err := c.catalog.ListStreams(ctx, token)
		if err != nil {
			log.Printf("Stream discovery failed, abandoning session: %v", err)
			return
		}

		c.checkDisk()

		cycleStart := c.now()
		segments := c.capture.RunCycle(ctx, streams)
		c.recordCycle(streams, segments)

		c.maybeStartPipeline(ctx, streams, cycleStart)

		if len(streams) == 0 {
			log.Printf("No streams to record, waiting before next discovery")
			sleepCtx(ctx, 10*time.Second)
		}
	}
}

// maybeStartPipeline launches the assemble+archive pipeline for the oldest
// hour that closed during a capture cycle. A rollover observed while the
// previous pipeline is still running stays pending and is acted upon on the
// first cycle after that pipeline completes; a single in-flight pipeline is
// a hard constraint, a closed hour is never dropped.
func (c *Controller) maybeStartPipeline(ctx context.Context, streams []catalog.Stream, cycleStart time.Time) {
	closed := cycleStart.Truncate(time.Hour)
	if !c.now().Truncate(time.Hour).Equal(closed) {
		c.pendingHours = append(c.pendingHours, closed)
	}
	if len(c.pendingHours) == 0 {
		return // still inside the same hour, nothing deferred
	}

	if c.archiveDone != nil {
		select {
		case <-c.archiveDone:
			c.archiveDone = nil
		default:
			log.Printf("Hour %s closed but previous pipeline is still running, deferring", c.pendingHours[0].Format(recording.HourLayout))
			return
		}
	}

	cameras := make([]string, 0, len(streams))
	for _, stream := range streams {
		cameras = append(cameras, recording.SanitizeCameraName(stream.Name))
	}
	if len(cameras) == 0 {
		return // keep the hour pending until streams come back
	}

	hour := c.pendingHours[0]
	c.pendingHours = c.pendingHours[1:]

	done := make(chan struct{})
	c.archiveDone = done

	c.mu.Lock()
	c.status.PipelineActive = true
	c.status.LastPipelineHour = hour.Format(recording.DateLayout + " " + recording.HourLayout)
	c.mu.Unlock()

	log.Printf("Hour rollover detected, launching assemble+archive pipeline for %s", hour.Format(recording.DateLayout+" "+recording.HourLayout))
	go c.runPipeline(ctx, cameras, hour, done)
}

// runPipeline assembles every camera's bucket for the closed hour, then
// archives the date and sweeps retention. Assembly for all cameras is joined
// before any upload starts; capture cycles continue concurrently on newer
// buckets.
func (c *Controller) runPipeline(ctx context.Context, cameras []string, hour time.Time, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		c.status.PipelineActive = false
		c.mu.Unlock()
	}()

	var wg sync.WaitGroup
	for _, camera := range cameras {
		wg.Add(1)
		go func(camera string) {
			defer wg.Done()
			if _, err := c.assembler.Assemble(camera, hour); err != nil {
				if errors.Is(err, recording.ErrEmptyBucket) {
					log.Printf("[%s] Nothing to assemble for %s", camera, hour.Format(recording.HourLayout))
					return
				}
				log.Printf("[%s] Assembly failed, bucket left for inspection: %v", camera, err)
			}
		}(camera)
	}
	wg.Wait()

	if err := c.archiver.ArchiveDate(ctx, hour); err != nil {
		log.Printf("Archive run failed for %s: %v", hour.Format(recording.DateLayout), err)
	}
	if err := c.archiver.RetentionSweep(ctx); err != nil {
		log.Printf("Retention sweep failed: %v", err)
	}
}

// checkDisk logs and records the state of the recording volume.
func (c *Controller) checkDisk() {
	if c.disk == nil {
		return
	}
	status, err := c.disk.Check()
	if err != nil {
		log.Printf("Disk check failed: %v", err)
		return
	}
	if status.Low {
		log.Printf("WARNING: low disk space on recording volume: %.2f GB free (%.1f%% used)", status.FreeGB, status.UsedPercent)
	}
	c.mu.Lock()
	c.status.Disk = status
	c.mu.Unlock()
}

func (c *Controller) recordCycle(streams []catalog.Stream, segments int) {
	names := make([]string, 0, len(streams))
	for _, stream := range streams {
		names = append(names, stream.Name)
	}
	c.mu.Lock()
	c.status.Cameras = names
	c.status.CycleCount++
	c.status.SegmentsLastCycle = segments
	c.status.LastCycleAt = c.now()
	c.mu.Unlock()
}

// Status returns a copy of the current controller snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := c.status
	status.Cameras = append([]string(nil), c.status.Cameras...)
	return status
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
