package transcoder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/david-morgenstern/filebrowser/internal/probe"
	"github.com/david-morgenstern/filebrowser/internal/streaming"
)

type fakeProber struct {
	profile *probe.CodecProfile
	err     error

	mu    sync.Mutex
	calls int
}

func (f *fakeProber) ProbeVideo(_ context.Context, _ string) (*probe.CodecProfile, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.profile, f.err
}

func (f *fakeProber) ProbeAudioTracks(_ context.Context, _ string) ([]probe.AudioTrack, error) {
	return nil, f.err
}

func (f *fakeProber) ProbeSubtitleTracks(_ context.Context, _ string) ([]probe.SubtitleTrack, error) {
	return nil, f.err
}

func (f *fakeProber) probeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLauncher struct {
	proc     *fakeProcess
	err      error
	onLaunch func()

	mu   sync.Mutex
	args []string
}

func (f *fakeLauncher) Launch(_ context.Context, args []string) (EncoderProcess, error) {
	f.mu.Lock()
	f.args = append([]string(nil), args...)
	f.mu.Unlock()
	if f.onLaunch != nil {
		f.onLaunch()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.proc, nil
}

func (f *fakeLauncher) launchArgs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.args
}

type viewRecord struct {
	clientID string
	filePath string
	fileName string
	fileType string
	fileSize int64
}

type fakeViews struct {
	mu      sync.Mutex
	err     error
	records []viewRecord
}

func (f *fakeViews) RecordView(clientID, filePath, fileName, fileType string, fileSize int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, viewRecord{clientID, filePath, fileName, fileType, fileSize})
	return nil
}

func (f *fakeViews) all() []viewRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]viewRecord(nil), f.records...)
}

func h264Profile(duration float64) *probe.CodecProfile {
	return &probe.CodecProfile{Duration: duration, VideoCodec: "h264"}
}

func writeTempVideo(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func testManager(prober probe.MetadataProber, launcher EncoderLauncher, views *fakeViews, maxSessions int) *Manager {
	var recorder streaming.ViewRecorder
	if views != nil {
		recorder = views
	}
	m := New(prober, launcher, recorder, maxSessions)
	m.grace = 50 * time.Millisecond
	return m
}

func TestServeCompletedSession(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 4096)
	sourcePath := writeTempVideo(t, 1234)

	prober := &fakeProber{profile: h264Profile(120)}
	launcher := &fakeLauncher{proc: exitedProcess(payload, nil)}
	views := &fakeViews{}
	m := testManager(prober, launcher, views, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transcode/movies/movie.mkv", nil)
	m.Serve(rec, req, Request{
		SourcePath: sourcePath,
		RecordPath: "movies/movie.mkv",
	}, "192.168.1.50")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want %q", got, "video/mp4")
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "none" {
		t.Errorf("Accept-Ranges = %q, want %q", got, "none")
	}
	if got := rec.Header().Get("X-Content-Duration"); got != "120.000" {
		t.Errorf("X-Content-Duration = %q, want %q", got, "120.000")
	}
	if got := rec.Header().Get("X-Start-Time"); got != "0.000" {
		t.Errorf("X-Start-Time = %q, want %q", got, "0.000")
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("body = %d bytes, want the full %d byte encoder output", rec.Body.Len(), len(payload))
	}

	// h264 sources take the stream-copy pipeline.
	if !hasSubsequence(launcher.launchArgs(), "-c:v", "copy") {
		t.Errorf("launch args = %v, want stream copy", launcher.launchArgs())
	}

	records := views.all()
	if len(records) != 1 {
		t.Fatalf("recorded %d views, want 1", len(records))
	}
	if records[0].filePath != "movies/movie.mkv" {
		t.Errorf("view path = %q, want the request path %q", records[0].filePath, "movies/movie.mkv")
	}
	if records[0].clientID != "192.168.1.50" {
		t.Errorf("view client = %q, want %q", records[0].clientID, "192.168.1.50")
	}
	if records[0].fileSize != 1234 {
		t.Errorf("view size = %d, want 1234", records[0].fileSize)
	}

	if n := m.ActiveSessions(); n != 0 {
		t.Errorf("ActiveSessions() = %d after completion, want 0", n)
	}
}

func TestServeSeekSkipsViewRecord(t *testing.T) {
	sourcePath := writeTempVideo(t, 100)

	prober := &fakeProber{profile: h264Profile(120)}
	launcher := &fakeLauncher{proc: exitedProcess([]byte("mp4"), nil)}
	views := &fakeViews{}
	m := testManager(prober, launcher, views, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transcode/movie.mkv", nil)
	m.Serve(rec, req, Request{SourcePath: sourcePath, StartTime: 42.5}, "10.0.0.1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("X-Start-Time"); got != "42.500" {
		t.Errorf("X-Start-Time = %q, want %q", got, "42.500")
	}
	if n := len(views.all()); n != 0 {
		t.Errorf("recorded %d views for a seek, want 0", n)
	}
}

func TestServeTranscodePipelineForLegacyCodec(t *testing.T) {
	sourcePath := writeTempVideo(t, 100)

	prober := &fakeProber{profile: &probe.CodecProfile{Duration: 90, VideoCodec: "mpeg4"}}
	launcher := &fakeLauncher{proc: exitedProcess([]byte("mp4"), nil)}
	m := testManager(prober, launcher, nil, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transcode/old.avi", nil)
	m.Serve(rec, req, Request{SourcePath: sourcePath}, "10.0.0.1")

	args := launcher.launchArgs()
	if !hasSubsequence(args, "-c:v", "libx264") {
		t.Errorf("launch args = %v, want full re-encode for mpeg4", args)
	}
	if hasSubsequence(args, "-c:v", "copy") {
		t.Errorf("launch args = %v, must not stream-copy mpeg4", args)
	}
}

func TestServeClientDisconnectKillsEncoder(t *testing.T) {
	sourcePath := writeTempVideo(t, 100)

	// The encoder's output pipe never delivers data, like a stalled read
	// after the client goes away. SIGTERM closes the pipe and ends the
	// process.
	pr, pw := io.Pipe()
	proc := newFakeProcess(pr)
	proc.closeOnTerm = pw

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := &fakeProber{profile: h264Profile(120)}
	launcher := &fakeLauncher{proc: proc, onLaunch: cancel}
	m := testManager(prober, launcher, nil, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transcode/movie.mkv", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		m.Serve(rec, req, Request{SourcePath: sourcePath}, "10.0.0.1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after client disconnect")
	}

	if !proc.sawSignal(syscall.SIGTERM) && !proc.wasKilled() {
		t.Error("encoder was not terminated after client disconnect")
	}
	if !proc.wasWaited() {
		t.Error("encoder was not reaped before Serve returned")
	}
	if n := m.ActiveSessions(); n != 0 {
		t.Errorf("ActiveSessions() = %d after disconnect, want 0", n)
	}
}

func TestServeRejectsWhenSlotsFull(t *testing.T) {
	prober := &fakeProber{profile: h264Profile(120)}
	launcher := &fakeLauncher{proc: exitedProcess(nil, nil)}
	m := testManager(prober, launcher, nil, 1)

	// Occupy the only slot.
	m.slots <- struct{}{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transcode/movie.mkv", nil)
	m.Serve(rec, req, Request{SourcePath: "/nonexistent"}, "10.0.0.1")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if prober.probeCalls() != 0 {
		t.Error("a rejected request must not reach the prober")
	}
}

func TestServeProbeFailure(t *testing.T) {
	prober := &fakeProber{err: probe.ErrProbeFailed}
	launcher := &fakeLauncher{}
	m := testManager(prober, launcher, nil, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transcode/movie.mkv", nil)
	m.Serve(rec, req, Request{SourcePath: "/media/movie.mkv"}, "10.0.0.1")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if launcher.launchArgs() != nil {
		t.Error("a failed probe must not spawn an encoder")
	}
}

func TestServeSpawnFailure(t *testing.T) {
	prober := &fakeProber{profile: h264Profile(120)}
	launcher := &fakeLauncher{err: ErrSpawnFailed}
	m := testManager(prober, launcher, nil, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transcode/movie.mkv", nil)
	m.Serve(rec, req, Request{SourcePath: "/media/movie.mkv"}, "10.0.0.1")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestClassifyOutcomes(t *testing.T) {
	m := testManager(nil, nil, nil, 1)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		killed  bool
		copyErr error
		waitErr error
		want    Outcome
	}{
		{"Clean", context.Background(), false, nil, nil, OutcomeCompleted},
		{"Context canceled", canceled, false, nil, errors.New("signal: killed"), OutcomeKilled},
		{"Session killed", context.Background(), true, nil, errors.New("signal: killed"), OutcomeKilled},
		{"Encoder error", context.Background(), false, nil, errors.New("exit status 1"), OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newSession(PipelineCopy, newFakeProcess(readerFor(nil)))
			if tt.killed {
				session.markKilled()
			}
			if got := m.classify(tt.ctx, session, tt.copyErr, tt.waitErr); got != tt.want {
				t.Errorf("classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanupKillsTrackedSessions(t *testing.T) {
	m := testManager(nil, nil, nil, 4)

	procs := []*fakeProcess{
		newFakeProcess(readerFor(nil)),
		newFakeProcess(readerFor(nil)),
	}
	for _, p := range procs {
		m.track(newSession(PipelineCopy, p))
	}

	m.Cleanup()

	for i, p := range procs {
		if !p.wasKilled() {
			t.Errorf("process %d was not killed on shutdown", i)
		}
	}
}
