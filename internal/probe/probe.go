package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/david-morgenstern/filebrowser/internal/metrics"
)

// ErrProbeFailed indicates the external metadata tool exited non-zero,
// timed out, or produced unparsable output. Maps to HTTP 500.
var ErrProbeFailed = errors.New("media probe failed")

// DefaultTimeout bounds a single probe invocation.
const DefaultTimeout = 5 * time.Second

// AudioTrack describes one audio stream in container order. Index is the
// position among audio streams (0-based), the form ffmpeg's 0:a:N selector
// expects.
type AudioTrack struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Channels int    `json:"channels"`
	Language string `json:"language,omitempty"`
	Title    string `json:"title,omitempty"`
	Label    string `json:"label"`
}

// SubtitleTrack describes one subtitle stream in container order.
type SubtitleTrack struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Language string `json:"language,omitempty"`
	Title    string `json:"title,omitempty"`
	Label    string `json:"label"`
}

// CodecProfile is the probed metadata that drives the copy-vs-transcode
// decision.
type CodecProfile struct {
	Duration       float64
	VideoCodec     string
	AudioTracks    []AudioTrack
	SubtitleTracks []SubtitleTrack
}

// MetadataProber probes media files for codec metadata.
type MetadataProber interface {
	ProbeVideo(ctx context.Context, path string) (*CodecProfile, error)
	ProbeAudioTracks(ctx context.Context, path string) ([]AudioTrack, error)
	ProbeSubtitleTracks(ctx context.Context, path string) ([]SubtitleTrack, error)
}

// FFProbe invokes the ffprobe binary.
type FFProbe struct {
	binPath string
	timeout time.Duration
}

// NewFFProbe creates a prober for the given ffprobe binary. A zero timeout
// uses DefaultTimeout.
func NewFFProbe(binPath string, timeout time.Duration) *FFProbe {
	if binPath == "" {
		binPath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FFProbe{binPath: binPath, timeout: timeout}
}

// ffprobe JSON output shapes
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index     int               `json:"index"`
	CodecType string            `json:"codec_type"`
	CodecName string            `json:"codec_name"`
	Channels  int               `json:"channels"`
	Tags      map[string]string `json:"tags"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// ProbeVideo returns the full codec profile for a file: duration, primary
// video codec, and the audio and subtitle tracks in container stream order.
func (p *FFProbe) ProbeVideo(ctx context.Context, path string) (*CodecProfile, error) {
	out, err := p.run(ctx, "-show_format", "-show_streams", path)
	if err != nil {
		return nil, err
	}

	profile := &CodecProfile{
		Duration: parseDuration(out.Format.Duration),
	}

	for _, stream := range out.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "video":
			if profile.VideoCodec == "" {
				profile.VideoCodec = strings.TrimSpace(stream.CodecName)
			}
		case "audio":
			profile.AudioTracks = append(profile.AudioTracks, audioTrackFrom(stream, len(profile.AudioTracks)))
		case "subtitle":
			profile.SubtitleTracks = append(profile.SubtitleTracks, subtitleTrackFrom(stream, len(profile.SubtitleTracks)))
		}
	}

	return profile, nil
}

// ProbeAudioTracks enumerates the audio streams of a file.
func (p *FFProbe) ProbeAudioTracks(ctx context.Context, path string) ([]AudioTrack, error) {
	out, err := p.run(ctx, "-show_streams", "-select_streams", "a", path)
	if err != nil {
		return nil, err
	}

	tracks := make([]AudioTrack, 0, len(out.Streams))
	for _, stream := range out.Streams {
		tracks = append(tracks, audioTrackFrom(stream, len(tracks)))
	}
	return tracks, nil
}

// ProbeSubtitleTracks enumerates the subtitle streams of a file.
func (p *FFProbe) ProbeSubtitleTracks(ctx context.Context, path string) ([]SubtitleTrack, error) {
	out, err := p.run(ctx, "-show_streams", "-select_streams", "s", path)
	if err != nil {
		return nil, err
	}

	tracks := make([]SubtitleTrack, 0, len(out.Streams))
	for _, stream := range out.Streams {
		tracks = append(tracks, subtitleTrackFrom(stream, len(tracks)))
	}
	return tracks, nil
}

func (p *FFProbe) run(ctx context.Context, args ...string) (*ffprobeOutput, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fullArgs := append([]string{"-v", "error", "-print_format", "json"}, args...)
	cmd := exec.CommandContext(probeCtx, p.binPath, fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProbeFailuresTotal.Inc()
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timeout after %s", ErrProbeFailed, p.timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrProbeFailed, msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		metrics.ProbeFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: unparsable output: %v", ErrProbeFailed, err)
	}
	return &parsed, nil
}

func audioTrackFrom(stream ffprobeStream, position int) AudioTrack {
	track := AudioTrack{
		Index:    position,
		Codec:    strings.TrimSpace(stream.CodecName),
		Channels: stream.Channels,
		Language: tag(stream.Tags, "language"),
		Title:    tag(stream.Tags, "title"),
	}
	track.Label = audioLabel(track)
	return track
}

func subtitleTrackFrom(stream ffprobeStream, position int) SubtitleTrack {
	track := SubtitleTrack{
		Index:    position,
		Codec:    strings.TrimSpace(stream.CodecName),
		Language: tag(stream.Tags, "language"),
		Title:    tag(stream.Tags, "title"),
	}
	track.Label = subtitleLabel(track)
	return track
}

func tag(tags map[string]string, key string) string {
	if tags == nil {
		return ""
	}
	return strings.TrimSpace(tags[key])
}

// audioLabel synthesizes a display label from language, title, and channel
// count. Absent metadata falls back to "Track N" (1-indexed).
func audioLabel(t AudioTrack) string {
	name := t.Title
	if name == "" {
		name = t.Language
	}
	if name == "" {
		name = fmt.Sprintf("Track %d", t.Index+1)
	}
	if layout := channelLayout(t.Channels); layout != "" {
		name = name + " (" + layout + ")"
	}
	return name
}

func subtitleLabel(t SubtitleTrack) string {
	if t.Title != "" {
		return t.Title
	}
	if t.Language != "" {
		return t.Language
	}
	return fmt.Sprintf("Track %d", t.Index+1)
}

// channelLayout renders a channel count as the conventional speaker layout.
func channelLayout(channels int) string {
	switch {
	case channels <= 0:
		return ""
	case channels == 6:
		return "5.1"
	case channels == 8:
		return "7.1"
	default:
		return strconv.Itoa(channels) + "ch"
	}
}

func parseDuration(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return v
}
