package job

import "fmt"

// Conventional exit statuses for failures that happen before or instead of
// a clean child exit.
const (
	ExitFailure    = 1
	ExitNoPerm     = 126
	ExitNotFound   = 127
	exitStopped    = 148 // 128 + SIGTSTP
	exitSignalBase = 128
)

// NotFoundError is reported when a command name resolves to nothing on the
// search path.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: command not found", e.Name)
}

// PermissionError is reported when a command resolves to a file that is
// not executable.
type PermissionError struct {
	Name string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: permission denied", e.Name)
}

// RedirectionError is reported when a redirection target cannot be opened;
// it aborts only the stage carrying the redirection.
type RedirectionError struct {
	Path string
	Err  error
}

func (e *RedirectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *RedirectionError) Unwrap() error { return e.Err }

// JobControlError is reported when process-group or terminal ownership
// cannot be established. Execution proceeds without foreground terminal
// control.
type JobControlError struct {
	Op  string
	Err error
}

func (e *JobControlError) Error() string {
	return fmt.Sprintf("job control: %s: %v", e.Op, e.Err)
}

func (e *JobControlError) Unwrap() error { return e.Err }
