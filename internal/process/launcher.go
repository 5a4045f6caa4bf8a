package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/smazurov/rworker/internal/logging"
)

// Spec is a fully resolved command to start.
type Spec struct {
	ID         string
	Path       string
	Args       []string
	Dir        string
	Env        []string
	ExtraFiles []*os.File
	Silent     bool
	UID        *uint32
	GID        *uint32
}

// Launcher starts OS processes. The returned Handle is notified of the exit
// by the launcher.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (*Handle, error)
}

// ExecLauncher starts processes with os/exec.
type ExecLauncher struct {
	logger        logging.Logger
	processLogger logging.Logger
}

// NewExecLauncher creates a launcher. Output of silent workers is written to
// processLogger, or logger when processLogger is nil.
func NewExecLauncher(logger, processLogger logging.Logger) *ExecLauncher {
	if processLogger == nil {
		processLogger = logger
	}
	return &ExecLauncher{logger: logger, processLogger: processLogger}
}

// Launch starts the process described by spec. Start errors from os/exec are
// returned unchanged.
func (l *ExecLauncher) Launch(ctx context.Context, spec Spec) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Not exec.CommandContext: the worker outlives the spawn request.
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.ExtraFiles = spec.ExtraFiles
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if spec.UID != nil || spec.GID != nil {
		cred := &syscall.Credential{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid())}
		if spec.UID != nil {
			cred.Uid = *spec.UID
		}
		if spec.GID != nil {
			cred.Gid = *spec.GID
		}
		cmd.SysProcAttr.Credential = cred
	}

	var stdout, stderr io.ReadCloser
	if spec.Silent {
		var err error
		if stdout, err = cmd.StdoutPipe(); err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		if stderr, err = cmd.StderrPipe(); err != nil {
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	handle := NewHandle(spec.ID, cmd.Process.Pid, cmd.Process, l.logger)
	l.logger.Debug("Process started", "id", spec.ID, "pid", handle.Pid(), "path", spec.Path, "args", spec.Args)

	outputDone := make(chan struct{}, 2)
	if spec.Silent {
		go func() {
			l.streamOutput(stdout, spec.ID, "stdout")
			outputDone <- struct{}{}
		}()
		go func() {
			l.streamOutput(stderr, spec.ID, "stderr")
			outputDone <- struct{}{}
		}()
	}

	go func() {
		if spec.Silent {
			// Wait closes the pipes, drain them first.
			<-outputDone
			<-outputDone
		}
		err := cmd.Wait()
		l.logger.Debug("Process exited", "id", spec.ID, "pid", handle.Pid(), "exit_code", exitCodeFromError(err))
		handle.NotifyExit(err)
	}()

	return handle, nil
}

// streamOutput forwards worker output line by line.
func (l *ExecLauncher) streamOutput(reader io.Reader, id, source string) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		if source == "stderr" {
			l.processLogger.Warn(scanner.Text(), "id", id, "source", source)
		} else {
			l.processLogger.Info(scanner.Text(), "id", id, "source", source)
		}
	}
	if err := scanner.Err(); err != nil {
		l.logger.Warn("Error reading output", "id", id, "source", source, "error", err)
	}
}

// exitCodeFromError extracts exit code from a wait error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
