package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/rogd/internal/logging"
)

// LogParser maps an output line to a log level and message.
type LogParser func(line string) (level, msg string)

// ExitError is returned when a command exits non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

// Runner runs one command to completion. Controllers take a Runner so tests
// can record invocations instead of spawning processes.
type Runner func(ctx context.Context, name string, args ...string) error

// Options tune Run.
type Options struct {
	// Parser classifies output lines; nil logs every line at info.
	Parser LogParser
	// KillTimeout bounds the wait after ctx is cancelled. Default 5s.
	KillTimeout time.Duration
}

// Run starts name with args, streams stdout and stderr to logger line by
// line and waits for exit. Cancelling ctx sends SIGINT to the process group
// and escalates to SIGKILL after KillTimeout.
func Run(ctx context.Context, logger logging.Logger, name string, args ...string) error {
	return RunWithOptions(ctx, logger, Options{}, name, args...)
}

// RunWithOptions is Run with explicit options.
func RunWithOptions(ctx context.Context, logger logging.Logger, opts Options, name string, args ...string) error {
	if opts.KillTimeout == 0 {
		opts.KillTimeout = 5 * time.Second
	}
	commandLine := strings.Join(append([]string{name}, args...), " ")

	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", commandLine, err)
	}
	logger.Debug("Process started", "pid", cmd.Process.Pid, "command", commandLine)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamOutput(stdout, logger, opts.Parser)
	}()
	go func() {
		defer wg.Done()
		streamOutput(stderr, logger, opts.Parser)
	}()

	processDone := make(chan error, 1)
	go func() {
		wg.Wait()
		processDone <- cmd.Wait()
	}()

	select {
	case err := <-processDone:
		return exitError(commandLine, err)
	case <-ctx.Done():
	}

	logger.Warn("Interrupting process", "command", commandLine)
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
	select {
	case <-processDone:
	case <-time.After(opts.KillTimeout):
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-processDone
	}
	return ctx.Err()
}

func exitError(commandLine string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: commandLine, Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("%s failed: %w", commandLine, err)
}

func streamOutput(reader io.Reader, logger logging.Logger, parser LogParser) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		level, msg := "info", scanner.Text()
		if parser != nil {
			level, msg = parser(msg)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("Error reading output", "error", err)
	}
}
