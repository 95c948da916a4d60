// Package elastix runs image registrations through the external elastix
// executable and collects the files it writes.
package elastix

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"goelastix/internal/models"
	"goelastix/pkg/logfile"
	"goelastix/pkg/result"
	"goelastix/pkg/watch"
)

// DefaultPath looks elastix up on PATH
const DefaultPath = "elastix"

// Runner executes a command line and waits for it
type Runner interface {
	Run(ctx context.Context, argv []string, verbose bool) (*models.ProcessResult, error)
}

// Client builds elastix command lines and runs them
type Client struct {
	// Path is the elastix executable
	Path string

	Runner Runner
	Logger zerolog.Logger

	// Strict turns a half-specified image or point-set pair into an error
	// instead of silently leaving the pair out
	Strict bool

	// Watch logs files as elastix writes them
	Watch bool
}

// New creates a client for the elastix executable at path
func New(path string, runner Runner, logger zerolog.Logger) *Client {
	if path == "" {
		path = DefaultPath
	}
	return &Client{
		Path:   path,
		Runner: runner,
		Logger: logger.With().Str("component", "elastix").Logger(),
	}
}

// Command returns the full elastix command line for req.
// It does not touch the filesystem.
func (c *Client) Command(req *models.RegistrationRequest) ([]string, error) {
	args, skipped, err := buildArgs(req, c.Strict)
	if err != nil {
		return nil, err
	}

	for _, p := range skipped {
		c.Logger.Warn().
			Str("flags", p.firstFlag+" "+p.secondFlag).
			Str("present", p.configError().Present).
			Msg("Ignoring incomplete input pair")
	}

	return append([]string{c.Path}, args...), nil
}

// Register runs elastix for req and resolves its outputs
func (c *Client) Register(ctx context.Context, req *models.RegistrationRequest, verbose bool) (*models.RegistrationResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	argv, err := c.Command(req)
	if err != nil {
		return nil, err
	}

	var procResult *models.ProcessResult
	run := func(ctx context.Context) error {
		var runErr error
		procResult, runErr = c.Runner.Run(ctx, argv, verbose)
		return runErr
	}

	if c.Watch {
		_, err = watch.During(ctx, req.OutputDir, c.Logger, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}

	return c.collect(req, procResult)
}

func (c *Client) collect(req *models.RegistrationRequest, procResult *models.ProcessResult) (*models.RegistrationResult, error) {
	res := &models.RegistrationResult{ProcessResult: *procResult}

	for i := range req.ParameterFiles {
		name := fmt.Sprintf("TransformParameters.%d.txt", i)
		path, err := result.Locate(req.OutputDir, fmt.Sprintf("transform parameters of stage %d", i), []string{name})
		if err != nil {
			return nil, err
		}
		res.TransformParameterFiles = append(res.TransformParameterFiles, path)
	}
	res.OutputPath = res.FinalTransform()

	last := len(req.ParameterFiles) - 1
	image, err := result.Locate(req.OutputDir, "result image",
		result.Candidates(fmt.Sprintf("result.%d", last), "mhd", "nii", "tiff", "dcm", "png"))
	var missing *result.MissingOutputError
	switch {
	case err == nil:
		res.ResultImage = image
	case errors.As(err, &missing):
		// WriteResultImage "false" is a valid parameter file setting
		c.Logger.Debug().Str("dir", req.OutputDir).Msg("No result image written")
	default:
		return nil, err
	}

	logs, err := logfile.Discover(req.OutputDir)
	if err != nil {
		return nil, err
	}
	res.IterationLogs = logs

	c.Logger.Info().
		Str("transform", res.OutputPath).
		Str("result_image", res.ResultImage).
		Int("iteration_logs", len(logs)).
		Dur("elapsed", res.Duration).
		Msg("Registration finished")
	return res, nil
}
