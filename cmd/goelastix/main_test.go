package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goelastix/internal/testutil/faketool"
	"goelastix/pkg/elastix"
	"goelastix/pkg/process"
	"goelastix/pkg/result"
)

// execute runs the CLI with a config path that does not exist and logging off
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	base := []string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "--log-level", "disabled"}
	cmd.SetArgs(append(base, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegisterDryRunSkipsHalfPair(t *testing.T) {
	out := t.TempDir()
	stdout, err := execute(t, "register", "--elastix", "/opt/elastix",
		"-f", "fixed.mhd", "-p", "affine.txt", "--out", out, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "/opt/elastix -p affine.txt -out "+out+"\n", stdout)
}

func TestRegisterStrictRejectsHalfPair(t *testing.T) {
	_, err := execute(t, "register", "--strict",
		"--fixed-points", "f.txt", "-p", "affine.txt", "--out", t.TempDir(), "--dry-run")
	var cerr *elastix.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "-fp", cerr.Present)
}

func TestRegisterRequiresOut(t *testing.T) {
	_, err := execute(t, "register", "-p", "affine.txt")
	assert.ErrorContains(t, err, `"out" not set`)
}

func TestRegisterWithFakeElastix(t *testing.T) {
	tool := faketool.Elastix(t)
	out := t.TempDir()

	stdout, err := execute(t, "register", "--elastix", tool,
		"-f", "fixed.mhd", "-m", "moving.mhd",
		"-p", "rigid.txt", "-p", "bspline.txt", "--out", out)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Transform parameters: "+filepath.Join(out, "TransformParameters.0.txt"))
	assert.Contains(t, stdout, "Transform parameters: "+filepath.Join(out, "TransformParameters.1.txt"))
	assert.Contains(t, stdout, "Result image: "+filepath.Join(out, "result.1.mhd"))
	assert.Contains(t, stdout, "Iteration log: "+filepath.Join(out, "IterationInfo.1.R0.txt"))

	logs, err := execute(t, "logs", out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "IterationInfo.0.R0.txt"),
		filepath.Join(out, "IterationInfo.1.R0.txt"),
	}, strings.Fields(logs))
}

func TestRegisterToolFailure(t *testing.T) {
	tool := faketool.Script(t, "elastix", "echo 'itk::ExceptionObject' >&2\nexit 3")

	_, err := execute(t, "register", "--elastix", tool, "-p", "rigid.txt", "--out", t.TempDir())
	var perr *process.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.ExitCode)
	assert.Contains(t, perr.Stderr, "itk::ExceptionObject")
	assert.Equal(t, 3, exitCode(err))
}

func TestTransformImage(t *testing.T) {
	tool := faketool.Transformix(t)
	t.Setenv("FAKE_OUTPUT", "result.mhd")
	out := t.TempDir()

	stdout, err := execute(t, "transform", "image", "moving.mhd",
		"--transformix", tool, "--tp", "TransformParameters.0.txt", "--out", out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "result.mhd"), strings.TrimSpace(stdout))

	args, err := os.ReadFile(filepath.Join(out, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "-tp TransformParameters.0.txt -out "+out+" -in moving.mhd", strings.TrimSpace(string(args)))
}

func TestTransformJacobianMissingOutput(t *testing.T) {
	tool := faketool.Transformix(t)
	t.Setenv("FAKE_OUTPUT", "")

	_, err := execute(t, "transform", "jacobian",
		"--transformix", tool, "--tp", "TransformParameters.0.txt", "--out", t.TempDir())
	var missing *result.MissingOutputError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Candidates, "spatialJacobian.mhd")
}

func TestTransformArgs(t *testing.T) {
	_, err := execute(t, "transform", "points", "--tp", "tp.txt")
	assert.Error(t, err, "points needs an input file")

	_, err = execute(t, "transform", "deformation", "extra", "--tp", "tp.txt")
	assert.Error(t, err, "deformation takes no input")

	_, err = execute(t, "transform", "deformation")
	assert.ErrorContains(t, err, `"tp" not set`)
}

func TestLogSummaryAndCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "IterationInfo.0.R0.txt",
		"1:ItNr\t2:Metric\tTime[ms]\n0\t1.5\t0.2\n1\t0.5\t0.4\n")

	stdout, err := execute(t, "log", path, "--column", "metric")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"metric", "2", "1.5", "0.5", "0.5", "1.5", "1"}, strings.Fields(lines[1]))

	stdout, err = execute(t, "log", path, "--csv")
	require.NoError(t, err)
	assert.Equal(t, "itnr,metric,time[ms]\n0,1.5,0.2\n1,0.5,0.4\n", stdout)

	_, err = execute(t, "log", path, "--column", "nope")
	assert.Error(t, err)
}

func TestParamEdit(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "TransformParameters.1.txt",
		"(InitialTransformParametersFileName \"/run/TransformParameters.0.txt\")\n(Transform \"BSplineTransform\")\n")

	stdout, err := execute(t, "paramedit", src, "--masked", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "- (InitialTransformParametersFileName \"/run/TransformParameters.0.txt\")\n")
	assert.Contains(t, stdout, "+ (InitialTransformParametersFileName \"/run/TransformParameters_masked.0.txt\")\n")
	assert.Contains(t, stdout, "  (Transform \"BSplineTransform\")\n")
	assert.Contains(t, stdout, "+ (ResultImagePixelType \"float\")\n")
	assert.Contains(t, stdout, "+ (FinalBSplineInterpolationOrder 0)\n")

	_, err = execute(t, "paramedit", src)
	assert.ErrorContains(t, err, "--out is required")

	dst := filepath.Join(dir, "labels.txt")
	_, err = execute(t, "paramedit", src, "--initial-transform", "/other/tp.txt", "--out", dst)
	require.NoError(t, err)
	edited, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "(InitialTransformParametersFileName \"/other/tp.txt\")\n"+
		"(Transform \"BSplineTransform\")\n"+
		"(ResultImagePixelType \"float\")\n"+
		"(FinalBSplineInterpolationOrder 0)\n", string(edited))
}

func TestSlices(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		img.SetGray(x, 1, color.Gray{Y: uint8(60 * x)})
	}
	f, err := os.Create(filepath.Join(dir, "slice.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "slices")
	stdout, err := execute(t, "slices", f.Name(), "--axis", "z,x", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Saved 1 z-axis slices")
	assert.Contains(t, stdout, "Saved 4 x-axis slices")
	assert.FileExists(t, filepath.Join(out, "z", "slice_z_000.jpg"))
	assert.FileExists(t, filepath.Join(out, "x", "slice_x_003.jpg"))

	_, err = execute(t, "slices", f.Name(), "--axis", "w", "--out", out)
	assert.ErrorContains(t, err, "invalid axis")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goelastix.toml")

	stdout, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Equal(t, "Wrote "+path+"\n", stdout)

	_, err = execute(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", path, "--force")
	assert.NoError(t, err)

	var out bytes.Buffer
	cmd := newRootCmd(&out, &bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "--log-level", "disabled", "register", "-p", "a.txt", "--out", t.TempDir(), "--dry-run"})
	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "elastix -p a.txt"))
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "chatty", "version")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestVersion(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "goelastix dev\n", stdout)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 1, exitCode(&process.Error{ExitCode: -1}))
	assert.Equal(t, 7, exitCode(fmt.Errorf("register: %w", &process.Error{ExitCode: 7})))
}
