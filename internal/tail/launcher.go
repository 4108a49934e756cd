package tail

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// DefaultBinary is the AWS CLI executable used for streaming.
const DefaultBinary = "aws"

// Launcher builds and starts `aws logs tail` subprocesses.
type Launcher struct {
	// Binary is the streaming executable; empty means DefaultBinary.
	Binary  string
	Region  string
	Profile string

	// command constructs the *exec.Cmd; tests replace it.
	command func(name string, args ...string) *exec.Cmd
}

// NewLauncher returns a Launcher for the given binary, region and profile.
func NewLauncher(binary, region, profile string) *Launcher {
	return &Launcher{Binary: binary, Region: region, Profile: profile}
}

// Args returns the streaming arguments for a log group and optional filter.
// The pattern is passed as one argument, exactly as given.
func (l *Launcher) Args(logGroup, filterPattern string) []string {
	args := []string{"logs", "tail", logGroup, "--follow"}
	if filterPattern != "" {
		args = append(args, "--filter-pattern", filterPattern)
	}
	if l.Region != "" {
		args = append(args, "--region", l.Region)
	}
	if l.Profile != "" {
		args = append(args, "--profile", l.Profile)
	}
	return args
}

func (l *Launcher) binary() string {
	if l.Binary == "" {
		return DefaultBinary
	}
	return l.Binary
}

// Process is a running streaming subprocess with its output pipes.
type Process struct {
	cmd    *exec.Cmd
	Stdout io.ReadCloser
	Stderr io.ReadCloser
}

// Pid returns the OS process id.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Kill asks the OS to terminate the process. Killing a process that has
// already exited is not an error.
func (p *Process) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Wait waits for the process to exit. Both pipes must be drained first.
func (p *Process) Wait() error {
	return p.cmd.Wait()
}

// Start launches the streaming subprocess. It does not block.
func (l *Launcher) Start(logGroup, filterPattern string) (*Process, error) {
	if logGroup == "" {
		return nil, errors.New("log group is required")
	}
	newCmd := l.command
	if newCmd == nil {
		newCmd = exec.Command
	}
	cmd := newCmd(l.binary(), l.Args(logGroup, filterPattern)...)
	// nil Stdin connects the child to the null device.
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Binary: l.binary(), Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Binary: l.binary(), Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Binary: l.binary(), Err: err}
	}
	return &Process{cmd: cmd, Stdout: stdout, Stderr: stderr}, nil
}
