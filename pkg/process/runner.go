// Package process launches the external registration tools and waits for
// them. A Runner owns the child for the duration of Run: the child is
// terminated when the caller's context ends, so it never outlives the call.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"goelastix/internal/models"
)

// DefaultKillGrace is how long a cancelled child gets between SIGTERM and SIGKILL
const DefaultKillGrace = 5 * time.Second

// ErrEmptyCommand is returned when Run is given no executable
var ErrEmptyCommand = errors.New("empty command")

// Error reports a tool that could not be started or exited with a non-zero code
type Error struct {
	// Tool is the base name of the executable
	Tool string

	// ExitCode is -1 when the process never started or was killed by a signal
	ExitCode int

	// Command is the full command line joined with spaces
	Command string

	// Stderr holds whatever the tool wrote to standard error
	Stderr string

	// Err is the launch or cancellation cause, if any
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s quit with error for command '%s': %v", e.Tool, e.Command, e.Err)
	}
	return fmt.Sprintf("%s crashed with code %d for command '%s'", e.Tool, e.ExitCode, e.Command)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Runner executes one external command per Run call
type Runner struct {
	Logger zerolog.Logger

	// Stdout receives the child's standard output in verbose mode.
	// Defaults to os.Stdout.
	Stdout io.Writer

	// Stderr, when set, receives a copy of the child's standard error in
	// verbose mode. The error stream is always captured regardless.
	Stderr io.Writer

	// KillGrace bounds the wait after SIGTERM before the child is killed.
	// Zero means DefaultKillGrace.
	KillGrace time.Duration
}

// NewRunner creates a runner that logs through logger
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{Logger: logger}
}

// Run starts argv[0] with the remaining entries as arguments and blocks until
// it exits. Without verbose the child's standard output is discarded.
func (r *Runner) Run(ctx context.Context, argv []string, verbose bool) (*models.ProcessResult, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}

	runID := uuid.NewString()
	line := strings.Join(argv, " ")
	tool := filepath.Base(argv[0])
	logger := r.Logger.With().Str("run_id", runID).Str("tool", tool).Logger()

	// #nosec G204 -- argv is assembled by the elastix and transformix clients
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = r.killGrace()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if verbose {
		cmd.Stdout = r.stdout()
		if r.Stderr != nil {
			cmd.Stderr = io.MultiWriter(&stderr, r.Stderr)
		}
		logger.Info().Str("command", line).Msg("Started command")
	} else {
		// nil connects the child to the null device
		cmd.Stdout = nil
		logger.Debug().Str("command", line).Msg("Started command")
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start command")
		return nil, &Error{Tool: tool, ExitCode: -1, Command: line, Err: err}
	}
	logger.Debug().Int("pid", cmd.Process.Pid).Msg("Process started")

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if waitErr != nil {
		procErr := &Error{Tool: tool, ExitCode: -1, Command: line, Stderr: stderr.String()}
		if cmd.ProcessState != nil {
			procErr.ExitCode = cmd.ProcessState.ExitCode()
		}

		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			procErr.Err = ctx.Err()
		case errors.As(waitErr, &exitErr):
			procErr.ExitCode = exitErr.ExitCode()
		default:
			procErr.Err = waitErr
		}

		logger.Error().
			Int("exit_code", procErr.ExitCode).
			Dur("elapsed", elapsed).
			Str("stderr", tail(procErr.Stderr, 2048)).
			Msg("Command failed")
		return nil, procErr
	}

	logger.Debug().Dur("elapsed", elapsed).Msg("Finished command")
	return &models.ProcessResult{
		RunID:    runID,
		Command:  append([]string(nil), argv...),
		ExitCode: 0,
		Stderr:   stderr.String(),
		Duration: elapsed,
	}, nil
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) killGrace() time.Duration {
	if r.KillGrace > 0 {
		return r.KillGrace
	}
	return DefaultKillGrace
}

// terminate asks the child to stop. Platforms without SIGTERM get a kill.
func terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return p.Kill()
	}
	return nil
}

// tail keeps the last n bytes of s for log lines
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
