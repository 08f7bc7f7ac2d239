package handlers

import (
	"net/http"
	"os"
	"strconv"

	"github.com/david-morgenstern/filebrowser/internal/logging"
	"github.com/david-morgenstern/filebrowser/internal/probe"
	"github.com/david-morgenstern/filebrowser/internal/subtitles"
	"github.com/david-morgenstern/filebrowser/internal/transcoder"

	"github.com/gorilla/mux"
)

// TranscodeVideo streams a video through the encoder, either remuxed or
// re-encoded depending on the source codec.
func (h *Handlers) TranscodeVideo(w http.ResponseWriter, r *http.Request) {
	if !h.transcode {
		http.Error(w, "Transcoding unavailable", http.StatusServiceUnavailable)
		return
	}

	requestPath := mux.Vars(r)["path"]
	fullPath, ok := h.resolvePath(requestPath)
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(fullPath); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	startTime := parseFloatParam(r, "start_time", 0)
	if startTime < 0 {
		startTime = 0
	}

	// The audio track index is handed to the encoder unvalidated; an
	// out-of-range value fails the session with the encoder's own error.
	audioTrack := parseIntParam(r, "audio_track", 0)
	if audioTrack < 0 {
		audioTrack = 0
	}

	h.manager.Serve(w, r, transcoder.Request{
		SourcePath: fullPath,
		RecordPath: requestPath,
		StartTime:  startTime,
		AudioTrack: audioTrack,
	}, clientID(r))
}

// VideoInfoResponse carries the probe result for a video file.
type VideoInfoResponse struct {
	Duration       float64 `json:"duration"`
	Codec          string  `json:"codec"`
	NeedsTranscode bool    `json:"needs_transcode"`
}

// VideoInfo probes a video and reports duration, codec, and whether playback
// requires re-encoding.
func (h *Handlers) VideoInfo(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		http.Error(w, "Media probing unavailable", http.StatusServiceUnavailable)
		return
	}

	fullPath, ok := h.resolvePath(mux.Vars(r)["path"])
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(fullPath); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	profile, err := h.prober.ProbeVideo(r.Context(), fullPath)
	if err != nil {
		logging.Warn("Video info probe %s: %v", fullPath, err)
		writeJSONError(w, "Failed to probe video", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, VideoInfoResponse{
		Duration:       profile.Duration,
		Codec:          profile.VideoCodec,
		NeedsTranscode: !probe.CopyEligible(profile.VideoCodec),
	})
}

// AudioTracks lists the audio streams of a video.
func (h *Handlers) AudioTracks(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		http.Error(w, "Media probing unavailable", http.StatusServiceUnavailable)
		return
	}

	fullPath, ok := h.resolvePath(mux.Vars(r)["path"])
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(fullPath); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	tracks, err := h.prober.ProbeAudioTracks(r.Context(), fullPath)
	if err != nil {
		logging.Warn("Audio tracks probe %s: %v", fullPath, err)
		writeJSONError(w, "Failed to probe audio tracks", http.StatusInternalServerError)
		return
	}
	if tracks == nil {
		tracks = []probe.AudioTrack{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{"tracks": tracks, "count": len(tracks)})
}

// SubtitleTracks lists the subtitle streams of a video.
func (h *Handlers) SubtitleTracks(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		http.Error(w, "Media probing unavailable", http.StatusServiceUnavailable)
		return
	}

	fullPath, ok := h.resolvePath(mux.Vars(r)["path"])
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(fullPath); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	tracks, err := h.prober.ProbeSubtitleTracks(r.Context(), fullPath)
	if err != nil {
		logging.Warn("Subtitle tracks probe %s: %v", fullPath, err)
		writeJSONError(w, "Failed to probe subtitle tracks", http.StatusInternalServerError)
		return
	}
	if tracks == nil {
		tracks = []probe.SubtitleTrack{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{"tracks": tracks, "count": len(tracks)})
}

// Subtitles extracts one subtitle track as WebVTT, with cue timestamps
// shifted back by the offset parameter so they line up with a stream that
// started mid-file.
func (h *Handlers) Subtitles(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		http.Error(w, "Subtitle extraction unavailable", http.StatusServiceUnavailable)
		return
	}

	fullPath, ok := h.resolvePath(mux.Vars(r)["path"])
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(fullPath); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	track := parseIntParam(r, "track", 0)
	if track < 0 {
		track = 0
	}
	offset := parseFloatParam(r, "offset", 0)

	vtt, err := h.extractor.Extract(r.Context(), fullPath, track)
	if err != nil {
		writeJSONError(w, "Failed to extract subtitles", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write([]byte(subtitles.ShiftCues(vtt, offset))); err != nil {
		logging.Debug("Subtitle write %s: %v", fullPath, err)
	}
}

func parseFloatParam(r *http.Request, name string, fallback float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
