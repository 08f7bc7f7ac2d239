package transcoder

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/david-morgenstern/filebrowser/internal/logging"
)

// Outcome is the terminal state of a session.
type Outcome string

const (
	// OutcomeCompleted means the encoder exited cleanly after producing its
	// full output.
	OutcomeCompleted Outcome = "completed"
	// OutcomeKilled means the client disconnected and the encoder was
	// terminated.
	OutcomeKilled Outcome = "killed"
	// OutcomeFailed means the encoder exited non-zero.
	OutcomeFailed Outcome = "failed"
)

// Session is one live encoder process bound to one client request. It is
// owned exclusively by the request handler that created it and is never
// shared across requests.
type Session struct {
	ID       string
	Pipeline Pipeline

	proc EncoderProcess

	// streamDone is closed when the output forwarding loop has finished,
	// which is the point from which Wait may safely be called.
	streamDone chan struct{}

	done     chan struct{}
	waitErr  error
	waitOnce sync.Once

	mu     sync.Mutex
	killed bool
}

func newSession(pipeline Pipeline, proc EncoderProcess) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Pipeline:   pipeline,
		proc:       proc,
		streamDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Pid returns the encoder process id.
func (s *Session) Pid() int { return s.proc.Pid() }

// Killed reports whether the session was torn down on behalf of a
// disconnected client.
func (s *Session) Killed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

func (s *Session) markKilled() {
	s.mu.Lock()
	s.killed = true
	s.mu.Unlock()
}

// watch terminates the encoder when the request context is canceled so a
// read blocked on the output pipe can unblock. It returns silently once
// streaming ends normally.
func (s *Session) watch(ctx context.Context, grace time.Duration) {
	select {
	case <-ctx.Done():
		s.terminate(grace)
	case <-s.streamDone:
	}
}

// terminate asks the encoder to exit, escalating to a hard kill when it
// does not stop within the grace period.
func (s *Session) terminate(grace time.Duration) {
	s.markKilled()

	if err := s.proc.Signal(syscall.SIGTERM); err != nil {
		logging.Debug("session %s: SIGTERM failed (process likely gone): %v", s.ID, err)
	}

	select {
	case <-s.streamDone:
		return
	case <-s.done:
		return
	case <-time.After(grace):
	}

	logging.Warn("session %s: encoder pid %d ignored SIGTERM, killing", s.ID, s.Pid())
	if err := s.proc.Kill(); err != nil {
		logging.Debug("session %s: kill failed: %v", s.ID, err)
	}
}

func (s *Session) wait() {
	s.waitOnce.Do(func() {
		s.waitErr = s.proc.Wait()
		close(s.done)
	})
}

// reap collects the encoder's exit status, escalating SIGTERM then SIGKILL
// when the process does not exit within the grace period. It must only be
// called after the output pipe has been drained.
func (s *Session) reap(grace time.Duration) error {
	go s.wait()

	select {
	case <-s.done:
		return s.waitErr
	case <-time.After(grace):
		logging.Warn("session %s: encoder pid %d did not exit, sending SIGTERM", s.ID, s.Pid())
		_ = s.proc.Signal(syscall.SIGTERM)
	}

	select {
	case <-s.done:
		return s.waitErr
	case <-time.After(grace):
		logging.Warn("session %s: encoder pid %d did not respond to SIGTERM, killing", s.ID, s.Pid())
		_ = s.proc.Kill()
	}

	select {
	case <-s.done:
		return s.waitErr
	case <-time.After(grace):
		logging.Error("session %s: encoder pid %d could not be reaped", s.ID, s.Pid())
		return errors.New("encoder process could not be reaped")
	}
}
