package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidData marks ffmpeg failures caused by an empty or corrupt input
// file rather than by the tool itself. Segments failing repair with this
// class are discarded; anything else aborts the assembler run.
var ErrInvalidData = errors.New("invalid or empty video data")

// FFmpeg is the boundary to the external encoder/muxer, invoked as a child
// process. All operations are container-level only, pixel data is never
// re-encoded.
type FFmpeg interface {
	// Capture records sourceURL into outputPath for at most maxDuration.
	Capture(ctx context.Context, sourceURL, outputPath string, maxDuration time.Duration) error
	// Repair remuxes inputPath into outputPath, normalizing container
	// timestamps broken by forced cuts.
	Repair(inputPath, outputPath string) error
	// Concat losslessly concatenates the ordered inputs into outputPath.
	Concat(inputPaths []string, outputPath string) error
}

// CommandFFmpeg runs the ffmpeg binary.
type CommandFFmpeg struct{}

// killGrace is added on top of the capture duration bound before the child
// process is forcibly terminated.
const killGrace = 30 * time.Second

func (CommandFFmpeg) Capture(ctx context.Context, sourceURL, outputPath string, maxDuration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, maxDuration+killGrace)
	defer cancel()

	args := []string{
		"-rtsp_transport", "tcp",
		"-timeout", "5000000",
		"-fflags", "nobuffer+discardcorrupt",
		"-i", sourceURL,
		"-t", fmt.Sprintf("%.0f", maxDuration.Seconds()),
		"-c", "copy",
		"-movflags", "+faststart",
		"-y", outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("capture exceeded duration bound and was killed: %s", tail(stderr.String()))
		}
		return classify(fmt.Errorf("ffmpeg capture failed: %v: %s", err, tail(stderr.String())), stderr.String())
	}
	return nil
}

func (CommandFFmpeg) Repair(inputPath, outputPath string) error {
	args := []string{
		"-fflags", "+genpts",
		"-i", inputPath,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y", outputPath,
	}

	cmd := exec.Command("ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return classify(fmt.Errorf("ffmpeg repair failed: %v: %s", err, tail(stderr.String())), stderr.String())
	}
	return nil
}

func (CommandFFmpeg) Concat(inputPaths []string, outputPath string) error {
	if len(inputPaths) == 0 {
		return fmt.Errorf("no input files to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "segments_concat_list.txt")
	listFile, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list file: %w", err)
	}
	defer os.Remove(listPath)

	for _, input := range inputPaths {
		abs, err := filepath.Abs(input)
		if err != nil {
			listFile.Close()
			return fmt.Errorf("failed to get absolute path for segment: %w", err)
		}
		if _, err := fmt.Fprintf(listFile, "file '%s'\n", abs); err != nil {
			listFile.Close()
			return fmt.Errorf("failed to write to concat list: %w", err)
		}
	}
	listFile.Close()

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", outputPath,
	}

	cmd := exec.Command("ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %v: %s", err, tail(stderr.String()))
	}
	return nil
}

// classify wraps err with ErrInvalidData when ffmpeg's diagnostics indicate
// the input held no usable stream.
func classify(err error, stderr string) error {
	for _, marker := range []string{
		"Invalid data found when processing input",
		"does not contain any stream",
		"could not find codec parameters",
	} {
		if strings.Contains(stderr, marker) {
			return fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	}
	return err
}

// tail keeps the last part of ffmpeg's stderr, which is where it reports
// the actual failure.
func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
