package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ErrSpawnFailed indicates the external encoder could not be started.
// Maps to HTTP 500.
var ErrSpawnFailed = errors.New("failed to start encoder")

// EncoderProcess is one running external encoder. Output() must be drained
// before Wait() is called; Signal() and Kill() may be called at any time.
type EncoderProcess interface {
	Output() io.Reader
	Wait() error
	Signal(sig os.Signal) error
	Kill() error
	Pid() int
	// StderrTail returns the most recent diagnostic output of the process.
	StderrTail() string
}

// EncoderLauncher spawns encoder processes. The production implementation
// runs ffmpeg; tests substitute a fake that returns canned byte streams.
type EncoderLauncher interface {
	Launch(ctx context.Context, args []string) (EncoderProcess, error)
}

// FFmpegLauncher launches ffmpeg with stdout captured as a pipe.
type FFmpegLauncher struct {
	binPath string
}

// NewFFmpegLauncher creates a launcher for the given ffmpeg binary.
func NewFFmpegLauncher(binPath string) *FFmpegLauncher {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegLauncher{binPath: binPath}
}

// Launch starts one ffmpeg process. The context is NOT wired to the
// process lifetime: termination is driven explicitly by the session so a
// graceful signal can precede the hard kill.
func (l *FFmpegLauncher) Launch(_ context.Context, args []string) (EncoderProcess, error) {
	cmd := exec.Command(l.binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawnFailed, err)
	}

	proc := &ffmpegProcess{cmd: cmd, stdout: stdout}
	cmd.Stderr = &proc.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	return proc, nil
}

type ffmpegProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr tailBuffer
}

func (p *ffmpegProcess) Output() io.Reader { return p.stdout }

func (p *ffmpegProcess) Wait() error { return p.cmd.Wait() }

func (p *ffmpegProcess) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

func (p *ffmpegProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *ffmpegProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *ffmpegProcess) StderrTail() string { return p.stderr.String() }

// tailBuffer keeps the last few kilobytes written to it, enough to surface
// the encoder's final error lines without holding its full chatter.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

const tailBufferMax = 8 * 1024

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > tailBufferMax {
		b.buf = b.buf[len(b.buf)-tailBufferMax:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
