package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// terminateDelay is how long a worker gets between SIGTERM and SIGKILL.
const terminateDelay = 10 * time.Second

// workerProcess is one running poll-worker subprocess. Stdout lines are
// delivered on Recv; Done closes after the process has fully exited.
type workerProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool

	recvCh chan string
	doneCh chan struct{}

	exited   atomic.Bool
	exitCode atomic.Int32
}

// spawnWorker starts the worker binary with the given arguments. The
// subprocess runs in its own process group so termination reaps any
// browser children it spawned.
func spawnWorker(ctx context.Context, binary string, args []string) (*workerProcess, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, binary, args...)

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = terminateDelay

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("session: stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("session: start worker: %w", err)
	}

	p := &workerProcess{
		cmd:    cmd,
		cancel: cancel,
		recvCh: make(chan string, 64),
		doneCh: make(chan struct{}),
	}

	go func() {
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			p.recvCh <- scanner.Text()
		}
		close(p.recvCh)

		err := cmd.Wait()
		code := 0
		if err != nil {
			code = -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
		}
		p.exitCode.Store(int32(code))
		p.exited.Store(true)
		close(p.doneCh)
	}()

	return p, nil
}

// Recv returns the channel of worker stdout lines.
func (p *workerProcess) Recv() <-chan string { return p.recvCh }

// Done returns a channel that closes when the worker has exited.
func (p *workerProcess) Done() <-chan struct{} { return p.doneCh }

// Exited reports whether the worker process has exited.
func (p *workerProcess) Exited() bool { return p.exited.Load() }

// ExitCode returns the worker exit code; only meaningful after Done.
// Signal-terminated workers report a negative code.
func (p *workerProcess) ExitCode() int { return int(p.exitCode.Load()) }

// PID returns the worker process ID.
func (p *workerProcess) PID() int { return p.cmd.Process.Pid }

// Close terminates the worker via SIGTERM to its process group, with a
// forced kill after terminateDelay. Idempotent; it does not wait.
func (p *workerProcess) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.cancel()
}
