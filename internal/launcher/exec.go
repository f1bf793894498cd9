package launcher

import (
	"errors"
	"io/fs"
	"os/exec"
	"syscall"
)

// Exit codes for launch failures, following shell conventions
const (
	ExitPermissionDenied = 126
	ExitNotFound         = 127
)

// ErrNoCommand is returned when run is given nothing to execute
var ErrNoCommand = errors.New("no command provided: usage: gridcfg run [flags] -- <command> [args...]")

// Command is the downstream workflow invocation, e.g. snakemake -j4
type Command struct {
	Target string
	Args   []string
}

// NewCommand splits argv into target and arguments
func NewCommand(argv []string) (Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Command{}, ErrNoCommand
	}
	return Command{Target: argv[0], Args: append([]string{}, argv[1:]...)}, nil
}

// LookPath resolves the executable for cmd without running it
func LookPath(cmd Command) (string, error) {
	return exec.LookPath(cmd.Target)
}

// Exec replaces the current process with the target command.
// It does not return on success. The returned error maps to an exit code with ExitCode.
func Exec(cmd Command, environ []string) error {
	execPath, err := LookPath(cmd)
	if err != nil {
		return err
	}

	argv := append([]string{cmd.Target}, cmd.Args...)
	return syscall.Exec(execPath, argv, environ)
}

// IsNotFound checks if the error indicates the command was not found
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// IsPermissionDenied checks if the error indicates permission was denied
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, fs.ErrPermission)
}

// ExitCode maps a launch error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsNotFound(err):
		return ExitNotFound
	case IsPermissionDenied(err):
		return ExitPermissionDenied
	}
	return 1
}
