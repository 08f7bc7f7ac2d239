package transcoder

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

// fakeProcess stands in for a running encoder. Its output reader and exit
// behavior are scripted per test.
type fakeProcess struct {
	pid int
	out io.Reader

	// exit delivers the Wait result. Tests either pre-fill it or arrange
	// for a signal to fill it.
	exit     chan error
	exitOnce sync.Once

	// termExit, when set, makes SIGTERM (or Kill) end the process with
	// this error and close closeOnTerm.
	termExit    error
	ignoreTerm  bool
	closeOnTerm io.Closer

	mu       sync.Mutex
	signals  []os.Signal
	killed   bool
	waited   bool
	tailText string
}

func newFakeProcess(out io.Reader) *fakeProcess {
	return &fakeProcess{pid: 4242, out: out, exit: make(chan error, 1)}
}

// exitedProcess returns a process that already ran to completion.
func exitedProcess(output []byte, err error) *fakeProcess {
	p := newFakeProcess(readerFor(output))
	p.exit <- err
	return p
}

func readerFor(b []byte) io.Reader {
	if b == nil {
		b = []byte{}
	}
	return &sliceReader{data: b}
}

type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (p *fakeProcess) Output() io.Reader { return p.out }

func (p *fakeProcess) Wait() error {
	p.mu.Lock()
	p.waited = true
	p.mu.Unlock()
	return <-p.exit
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	ignore := p.ignoreTerm
	p.mu.Unlock()

	if sig == syscall.SIGTERM && !ignore {
		p.endProcess()
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.endProcess()
	return nil
}

func (p *fakeProcess) endProcess() {
	p.exitOnce.Do(func() {
		if p.closeOnTerm != nil {
			p.closeOnTerm.Close()
		}
		err := p.termExit
		if err == nil {
			err = errors.New("signal: terminated")
		}
		p.exit <- err
	})
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) StderrTail() string { return p.tailText }

func (p *fakeProcess) sawSignal(sig os.Signal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.signals {
		if s == sig {
			return true
		}
	}
	return false
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) wasWaited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waited
}

func TestReapCleanExit(t *testing.T) {
	t.Parallel()

	proc := exitedProcess(nil, nil)
	session := newSession(PipelineCopy, proc)

	if err := session.reap(100 * time.Millisecond); err != nil {
		t.Errorf("reap() = %v, want nil", err)
	}
	if proc.sawSignal(syscall.SIGTERM) || proc.wasKilled() {
		t.Error("clean exit must not be signaled")
	}
	if !proc.wasWaited() {
		t.Error("process was not waited on")
	}
}

func TestReapFailedExit(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("exit status 1")
	proc := exitedProcess(nil, wantErr)
	session := newSession(PipelineTranscode, proc)

	if err := session.reap(100 * time.Millisecond); !errors.Is(err, wantErr) {
		t.Errorf("reap() = %v, want %v", err, wantErr)
	}
}

func TestReapEscalatesToSigterm(t *testing.T) {
	t.Parallel()

	// The process lingers until signaled.
	proc := newFakeProcess(readerFor(nil))
	session := newSession(PipelineCopy, proc)

	if err := session.reap(20 * time.Millisecond); err == nil {
		t.Error("reap() = nil, want the terminated exit error")
	}
	if !proc.sawSignal(syscall.SIGTERM) {
		t.Error("lingering process was not sent SIGTERM")
	}
	if proc.wasKilled() {
		t.Error("process that honors SIGTERM must not be hard-killed")
	}
}

func TestReapEscalatesToKill(t *testing.T) {
	t.Parallel()

	proc := newFakeProcess(readerFor(nil))
	proc.ignoreTerm = true
	session := newSession(PipelineCopy, proc)

	if err := session.reap(20 * time.Millisecond); err == nil {
		t.Error("reap() = nil, want the terminated exit error")
	}
	if !proc.sawSignal(syscall.SIGTERM) {
		t.Error("escalation must try SIGTERM before killing")
	}
	if !proc.wasKilled() {
		t.Error("process ignoring SIGTERM was not killed")
	}
}

func TestWatchTerminatesOnContextCancel(t *testing.T) {
	t.Parallel()

	proc := newFakeProcess(readerFor(nil))
	proc.ignoreTerm = true
	session := newSession(PipelineCopy, proc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		session.watch(ctx, 20*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after context cancellation")
	}

	if !session.Killed() {
		t.Error("session was not marked killed")
	}
	if !proc.sawSignal(syscall.SIGTERM) {
		t.Error("encoder was not sent SIGTERM")
	}
	if !proc.wasKilled() {
		t.Error("encoder ignoring SIGTERM was not killed")
	}
}

func TestWatchReturnsWhenStreamEnds(t *testing.T) {
	t.Parallel()

	proc := newFakeProcess(readerFor(nil))
	session := newSession(PipelineCopy, proc)

	done := make(chan struct{})
	go func() {
		session.watch(context.Background(), 20*time.Millisecond)
		close(done)
	}()

	close(session.streamDone)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after stream completion")
	}

	if session.Killed() || proc.sawSignal(syscall.SIGTERM) || proc.wasKilled() {
		t.Error("normal stream completion must not touch the process")
	}
}
