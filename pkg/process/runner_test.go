package process

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"goelastix/internal/testutil/faketool"
)

func newTestRunner() *Runner {
	return &Runner{Logger: zerolog.Nop(), KillGrace: 200 * time.Millisecond}
}

func TestRunSuccessCapturesStderr(t *testing.T) {
	tool := faketool.Script(t, "ok", `echo progress; echo warning >&2; exit 0`)
	r := newTestRunner()
	var stdout bytes.Buffer
	r.Stdout = &stdout

	res, err := r.Run(context.Background(), []string{tool, "-a", "b"}, false)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "warning\n", res.Stderr)
	assert.Equal(t, []string{tool, "-a", "b"}, res.Command)
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, stdout.String(), "stdout is discarded when not verbose")
}

func TestRunVerboseForwardsStdout(t *testing.T) {
	tool := faketool.Script(t, "chatty", `echo progress; echo warning >&2`)
	r := newTestRunner()
	var stdout, stderr bytes.Buffer
	r.Stdout = &stdout
	r.Stderr = &stderr

	res, err := r.Run(context.Background(), []string{tool}, true)
	require.NoError(t, err)

	assert.Equal(t, "progress\n", stdout.String())
	assert.Equal(t, "warning\n", stderr.String())
	assert.Equal(t, "warning\n", res.Stderr)
}

func TestRunNonZeroExit(t *testing.T) {
	tool := faketool.Script(t, "elastix", `echo "itk exception" >&2; exit 3`)
	argv := []string{tool, "-p", "params.txt", "-out", "/tmp/out dir"}

	_, err := newTestRunner().Run(context.Background(), argv, false)
	require.Error(t, err)

	var procErr *Error
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, 3, procErr.ExitCode)
	assert.Equal(t, strings.Join(argv, " "), procErr.Command)
	assert.Equal(t, "elastix", procErr.Tool)
	assert.Contains(t, procErr.Stderr, "itk exception")
	assert.Nil(t, procErr.Err)
	assert.Contains(t, err.Error(), "crashed with code 3")
}

func TestRunExitCodeProperty(t *testing.T) {
	tool := faketool.Script(t, "exiter", `exit "$1"`)
	r := newTestRunner()

	rapid.Check(t, func(rt *rapid.T) {
		code := rapid.IntRange(1, 125).Draw(rt, "code")
		extra := rapid.SliceOfN(rapid.StringMatching(`[a-z0-9./-]{1,8}`), 0, 4).Draw(rt, "extra")
		argv := append([]string{tool, strconv.Itoa(code)}, extra...)

		_, err := r.Run(context.Background(), argv, false)

		var procErr *Error
		if !errors.As(err, &procErr) {
			rt.Fatalf("expected *Error, got %v", err)
		}
		if procErr.ExitCode != code {
			rt.Fatalf("exit code %d, want %d", procErr.ExitCode, code)
		}
		if procErr.Command != strings.Join(argv, " ") {
			rt.Fatalf("command %q, want %q", procErr.Command, strings.Join(argv, " "))
		}
	})
}

func TestRunLaunchFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-elastix")

	_, err := newTestRunner().Run(context.Background(), []string{missing, "-out", "x"}, false)
	require.Error(t, err)

	var procErr *Error
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, -1, procErr.ExitCode)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRunEmptyCommand(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestRunCancelTerminatesChild(t *testing.T) {
	tool := faketool.Script(t, "slow", `exec sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := newTestRunner().Run(ctx, []string{tool}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunTimeout(t *testing.T) {
	tool := faketool.Script(t, "slow", `exec sleep 30`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := newTestRunner().Run(ctx, []string{tool}, false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 5))
	assert.Equal(t, "...cde", tail("abcde", 3))
}
