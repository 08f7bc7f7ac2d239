package subtitles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/david-morgenstern/filebrowser/internal/logging"
)

// ErrExtractFailed is returned when the encoder exits without producing
// usable WebVTT output.
var ErrExtractFailed = errors.New("subtitle extraction failed")

// DefaultTimeout bounds a single extraction run. Text subtitle tracks are
// small, so even long files demux well inside this window.
const DefaultTimeout = 30 * time.Second

// Extractor pulls embedded subtitle tracks out of media files as WebVTT.
type Extractor struct {
	ffmpegPath string
	timeout    time.Duration
}

// NewExtractor returns an Extractor using the given ffmpeg binary. A
// non-positive timeout falls back to DefaultTimeout.
func NewExtractor(ffmpegPath string, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{ffmpegPath: ffmpegPath, timeout: timeout}
}

// Extract demuxes subtitle track index (0-based among subtitle streams) from
// path and returns the full track as WebVTT. Timestamps are the source
// file's own; callers that stream from a mid-file position shift them with
// ShiftCues.
func (e *Extractor) Extract(ctx context.Context, path string, track int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-i", path,
		"-map", fmt.Sprintf("0:s:%d", track),
		"-c:s", "webvtt",
		"-f", "webvtt",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		logging.Warn("Subtitle extraction failed for %s track %d after %v: %v (%s)",
			path, track, time.Since(start).Round(time.Millisecond), err, firstLine(stderr.String()))
		return "", fmt.Errorf("%w: track %d: %v", ErrExtractFailed, track, err)
	}

	out := stdout.String()
	if !strings.Contains(out, "WEBVTT") {
		return "", fmt.Errorf("%w: track %d produced no WebVTT output", ErrExtractFailed, track)
	}
	logging.Debug("Extracted subtitle track %d from %s (%d bytes in %v)",
		track, path, stdout.Len(), time.Since(start).Round(time.Millisecond))
	return out, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
