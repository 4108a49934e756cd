package tail

import (
	"errors"
	"fmt"
)

// ErrStopped is returned when a session ends because its context was
// cancelled (user interrupt). It is a clean shutdown, not a failure.
var ErrStopped = errors.New("tailing stopped")

// ErrSessionActive is returned when a second session is requested while
// one is still running.
var ErrSessionActive = errors.New("a tail session is already active")

// LaunchError reports that the streaming subprocess could not be started
// or failed at the OS level while running.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to run %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Hint is a remediation message suitable for the user.
func (e *LaunchError) Hint() string {
	return fmt.Sprintf("make sure the AWS CLI v2 is installed and %q is on your PATH and configured", e.Binary)
}

// ExitError reports that the streaming subprocess exited on its own with
// a non-zero code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("log stream exited with code %d", e.Code)
}
