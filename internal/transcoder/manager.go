package transcoder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/david-morgenstern/filebrowser/internal/logging"
	"github.com/david-morgenstern/filebrowser/internal/metrics"
	"github.com/david-morgenstern/filebrowser/internal/probe"
	"github.com/david-morgenstern/filebrowser/internal/streaming"
)

// DefaultGrace bounds each escalation step of process teardown.
const DefaultGrace = 3 * time.Second

// Request identifies one playback session's starting point and audio
// selection. A request with a later start time is a user seek and starts an
// entirely new session.
type Request struct {
	// SourcePath is the absolute file path handed to the encoder.
	SourcePath string
	// RecordPath keys the view record; it is the path as clients address
	// the resource. Empty means SourcePath.
	RecordPath string
	StartTime  float64
	AudioTrack int
}

// Manager spawns and owns encoder processes, one per client session.
type Manager struct {
	prober   probe.MetadataProber
	launcher EncoderLauncher
	views    streaming.ViewRecorder
	config   streaming.WriterConfig
	grace    time.Duration

	// slots bounds the number of concurrent encoder processes.
	slots chan struct{}

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a session manager. views may be nil. maxSessions bounds
// concurrency; requests beyond it are rejected with 503.
func New(prober probe.MetadataProber, launcher EncoderLauncher, views streaming.ViewRecorder, maxSessions int) *Manager {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &Manager{
		prober:   prober,
		launcher: launcher,
		views:    views,
		config:   streaming.DefaultWriterConfig(),
		grace:    DefaultGrace,
		slots:    make(chan struct{}, maxSessions),
		sessions: make(map[string]*Session),
	}
}

// Serve runs the full session state machine for one request: probe,
// pipeline selection, spawn, stream, teardown. The response is written
// entirely by this method. The encoder process is guaranteed to be
// terminated and reaped before Serve returns.
func (m *Manager) Serve(w http.ResponseWriter, r *http.Request, req Request, clientID string) {
	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	default:
		http.Error(w, "Too many concurrent transcode sessions", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()

	profile, err := m.prober.ProbeVideo(ctx, req.SourcePath)
	if err != nil {
		logging.Error("probe failed for %s: %v", req.SourcePath, err)
		http.Error(w, "Failed to probe media", http.StatusInternalServerError)
		return
	}

	// A session starting at zero is a playback start; a later start time is
	// a seek within playback the client already counted.
	if req.StartTime == 0 {
		recordPath := req.RecordPath
		if recordPath == "" {
			recordPath = req.SourcePath
		}
		m.recordView(clientID, req.SourcePath, recordPath)
	}

	pipeline := PipelineTranscode
	if probe.CopyEligible(profile.VideoCodec) {
		pipeline = PipelineCopy
	}

	args := buildArgs(req.SourcePath, req.StartTime, req.AudioTrack, pipeline)
	proc, err := m.launcher.Launch(ctx, args)
	if err != nil {
		logging.Error("encoder spawn failed for %s: %v", req.SourcePath, err)
		http.Error(w, "Failed to start encoder", http.StatusInternalServerError)
		return
	}

	session := newSession(pipeline, proc)
	m.track(session)
	defer m.untrack(session)

	metrics.TranscodeSessionsActive.Inc()
	defer metrics.TranscodeSessionsActive.Dec()

	logging.Info("session %s: pipeline=%s codec=%s pid=%d start=%.1fs audio=%d path=%s",
		session.ID, pipeline, profile.VideoCodec, session.Pid(), req.StartTime, req.AudioTrack, req.SourcePath)

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Accept-Ranges", "none")
	if profile.Duration > 0 {
		w.Header().Set("X-Content-Duration", fmt.Sprintf("%.3f", profile.Duration))
	}
	w.Header().Set("X-Start-Time", fmt.Sprintf("%.3f", req.StartTime))
	w.WriteHeader(http.StatusOK)

	// The watcher unblocks a read stuck on the output pipe by terminating
	// the encoder when the client goes away.
	go session.watch(ctx, m.grace)

	written, copyErr := streaming.Copy(ctx, w, proc.Output(), m.config)
	close(session.streamDone)
	metrics.StreamedBytesTotal.WithLabelValues("transcode").Add(float64(written))

	waitErr := session.reap(m.grace)

	outcome := m.classify(ctx, session, copyErr, waitErr)
	metrics.TranscodeSessionsTotal.WithLabelValues(string(pipeline), string(outcome)).Inc()

	switch outcome {
	case OutcomeKilled:
		logging.Debug("session %s: client disconnected after %d bytes", session.ID, written)
	case OutcomeFailed:
		logging.Error("session %s: encoder failed after %d bytes: %v; stderr: %s",
			session.ID, written, waitErr, proc.StderrTail())
	default:
		logging.Info("session %s: completed, %d bytes", session.ID, written)
	}
}

// classify maps the streaming and exit results onto a terminal state. A
// disconnected client is a cancellation, not a failure, even though the
// killed encoder exits non-zero.
func (m *Manager) classify(ctx context.Context, session *Session, copyErr, waitErr error) Outcome {
	if ctx.Err() != nil || session.Killed() ||
		errors.Is(copyErr, streaming.ErrClientGone) || errors.Is(copyErr, streaming.ErrStreamCanceled) {
		return OutcomeKilled
	}
	if waitErr != nil {
		return OutcomeFailed
	}
	return OutcomeCompleted
}

func (m *Manager) recordView(clientID, sourcePath, recordPath string) {
	if m.views == nil {
		return
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return
	}
	if err := m.views.RecordView(clientID, recordPath, filepath.Base(sourcePath), "video", info.Size()); err != nil {
		logging.Warn("failed to record view for %s: %v", recordPath, err)
	}
}

func (m *Manager) track(s *Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
}

func (m *Manager) untrack(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
}

// ActiveSessions returns the number of live encoder processes.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cleanup terminates all live encoder processes. Called on shutdown.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		logging.Info("killing encoder process for session %s (pid %d)", id, session.Pid())
		if err := session.proc.Kill(); err != nil {
			logging.Warn("failed to kill encoder for session %s: %v", id, err)
		}
	}
}
