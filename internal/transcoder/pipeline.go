package transcoder

import (
	"fmt"
	"strconv"
)

// Pipeline identifies the encoding strategy chosen for a session.
type Pipeline string

const (
	// PipelineCopy repackages the video stream verbatim and re-encodes only
	// the audio to a uniform browser-safe format.
	PipelineCopy Pipeline = "copy"
	// PipelineTranscode fully re-encodes the video at a fast preset.
	PipelineTranscode Pipeline = "transcode"
)

// coarseSeekWindow is the margin kept for the post-input fine seek in copy
// pipelines. The container-level seek lands up to this many seconds early;
// the frame-accurate seek covers the remainder.
const coarseSeekWindow = 30.0

// Fixed audio target so every session produces the same browser-safe
// format regardless of the source.
const (
	audioCodec    = "aac"
	audioBitrate  = "192k"
	audioChannels = "2"
)

// buildArgs assembles the encoder invocation for a session. The audio track
// index is passed through unvalidated; an out-of-range index surfaces as an
// encoder failure rather than a local error.
func buildArgs(sourcePath string, startTime float64, audioTrack int, pipeline Pipeline) []string {
	var args []string

	if pipeline == PipelineCopy {
		// Split the seek: a fast container-level seek lands close to the
		// target, then a frame-accurate seek covers the small remainder.
		coarse, fine := splitSeek(startTime)
		if coarse > 0 {
			args = append(args, "-ss", formatSeconds(coarse))
		}
		args = append(args, "-i", sourcePath)
		if fine > 0 {
			args = append(args, "-ss", formatSeconds(fine))
		}
	} else {
		// The full stream is decoded anyway, so a single pre-input seek is
		// both fast and accurate enough.
		if startTime > 0 {
			args = append(args, "-ss", formatSeconds(startTime))
		}
		args = append(args, "-i", sourcePath)
	}

	args = append(args,
		"-map", "0:v:0",
		"-map", "0:a:"+strconv.Itoa(audioTrack),
	)

	if pipeline == PipelineCopy {
		args = append(args, "-c:v", "copy")
	} else {
		args = append(args, "-c:v", "libx264", "-preset", "fast", "-crf", "23")
	}

	args = append(args,
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-ac", audioChannels,
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	)

	return args
}

// splitSeek divides a start time into the coarse pre-input component and
// the fine post-input remainder.
func splitSeek(startTime float64) (coarse, fine float64) {
	if startTime <= 0 {
		return 0, 0
	}
	coarse = startTime - coarseSeekWindow
	if coarse < 0 {
		coarse = 0
	}
	return coarse, startTime - coarse
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
