// Package tail runs `aws logs tail --follow` as a child process, relays its
// output to the caller's streams and ties the child's lifetime to a context.
package tail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// reapTimeout bounds how long Run waits for the killed child to be reaped.
const reapTimeout = 2 * time.Second

const chunkSize = 32 * 1024

// Session is one in-flight tailing operation. It owns its Process for its
// whole lifetime: nothing else reads the pipes or signals the child.
type Session struct {
	ID            string
	LogGroup      string
	FilterPattern string

	proc   *Process
	binary string
	stdout io.Writer
	stderr io.Writer
	errTag *color.Color
	logger *slog.Logger

	started atomic.Bool
	kill    sync.Once
}

func newSession(proc *Process, binary, logGroup, filterPattern string, stdout, stderr io.Writer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	id := uuid.NewString()
	return &Session{
		ID:            id,
		LogGroup:      logGroup,
		FilterPattern: filterPattern,
		proc:          proc,
		binary:        binary,
		stdout:        stdout,
		stderr:        stderr,
		errTag:        color.New(color.FgRed),
		logger:        logger.With("session", id, "log_group", logGroup),
	}
}

// Run relays the child's output until it exits or ctx is cancelled.
//
// It returns nil when the child exits with code zero or is terminated by a
// signal, *ExitError for a non-zero exit code, *LaunchError when waiting on
// the child fails, and ErrStopped when ctx is cancelled first.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("tail session already started")
	}
	s.logger.Debug("tail session started", "pid", s.proc.Pid(), "filter_pattern", s.FilterPattern)

	exited := make(chan error, 1)
	go func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.relay(s.stdout, s.proc.Stdout, nil)
		}()
		go func() {
			defer wg.Done()
			s.relay(s.stderr, s.proc.Stderr, s.errTag)
		}()
		// Wait closes the pipes, so it must follow the relays.
		wg.Wait()
		exited <- s.proc.Wait()
	}()

	select {
	case err := <-exited:
		// A terminal interrupt reaches the child too; it may exit before
		// ctx.Done is observed.
		if ctx.Err() != nil {
			s.logger.Debug("tail session stopped", "cause", context.Cause(ctx), "exit", err)
			return ErrStopped
		}
		return s.exitResult(err)
	case <-ctx.Done():
		s.stop()
		select {
		case <-exited:
		case <-time.After(reapTimeout):
			s.logger.Warn("child did not exit after kill", "pid", s.proc.Pid())
		}
		s.logger.Debug("tail session stopped", "cause", context.Cause(ctx))
		return ErrStopped
	}
}

// stop terminates the child at most once.
func (s *Session) stop() {
	s.kill.Do(func() {
		if err := s.proc.Kill(); err != nil {
			s.logger.Warn("kill log stream", "error", err)
		}
	})
}

func (s *Session) exitResult(err error) error {
	if err == nil {
		s.logger.Debug("log stream ended", "code", 0)
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		s.logger.Debug("log stream ended", "code", code)
		// -1 means the child was killed by a signal.
		if code > 0 {
			return &ExitError{Code: code}
		}
		return nil
	}
	return &LaunchError{Binary: s.binary, Err: err}
}

// relay forwards src to dst chunk by chunk, in arrival order. A failing
// destination does not stop the read loop so the child never blocks on a
// full pipe.
func (s *Session) relay(dst io.Writer, src io.Reader, tag *color.Color) {
	buf := make([]byte, chunkSize)
	var writeErr error
	for {
		n, err := src.Read(buf)
		if n > 0 && writeErr == nil {
			if tag != nil {
				_, writeErr = tag.Fprint(dst, string(buf[:n]))
			} else {
				_, writeErr = dst.Write(buf[:n])
			}
			if writeErr != nil {
				s.logger.Warn("relay write failed", "error", writeErr)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("relay read ended", "error", err)
			}
			return
		}
	}
}

// Controller starts sessions and allows only one to be active at a time.
type Controller struct {
	launcher *Launcher
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger

	// Started, if set, is called with the id and pid of each session once
	// its child is running.
	Started func(id string, pid int)

	mu     sync.Mutex
	active *Session
}

// NewController returns a Controller relaying to stdout and stderr.
func NewController(launcher *Launcher, stdout, stderr io.Writer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{launcher: launcher, stdout: stdout, stderr: stderr, logger: logger}
}

// Tail launches a stream for logGroup and blocks until the child exits or
// ctx is cancelled. See Session.Run for the returned errors.
func (c *Controller) Tail(ctx context.Context, logGroup, filterPattern string) error {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	proc, err := c.launcher.Start(logGroup, filterPattern)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	session := newSession(proc, c.launcher.binary(), logGroup, filterPattern, c.stdout, c.stderr, c.logger)
	c.active = session
	c.mu.Unlock()
	if c.Started != nil {
		c.Started(session.ID, proc.Pid())
	}

	defer func() {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
	}()
	return session.Run(ctx)
}

// Active returns the running session, or nil.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
