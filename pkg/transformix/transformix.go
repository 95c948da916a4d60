// Package transformix applies transforms computed by elastix to images and
// point sets, and derives deformation fields and Jacobians from them.
package transformix

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"goelastix/internal/models"
	"goelastix/pkg/result"
	"goelastix/pkg/watch"
)

// DefaultPath looks transformix up on PATH
const DefaultPath = "transformix"

var (
	// ErrNoParameterFile is returned when no transform parameter file is set
	ErrNoParameterFile = errors.New("transform parameter file is required")

	// ErrMissingInput is returned when an image or points operation has no input
	ErrMissingInput = errors.New("operation requires an input file")

	// ErrOutputDirMissing is returned when the output directory does not exist
	ErrOutputDirMissing = errors.New("output directory does not exist")
)

// Runner executes a command line and waits for it
type Runner interface {
	Run(ctx context.Context, argv []string, verbose bool) (*models.ProcessResult, error)
}

// outputSpec describes the flags and result files of one operation
type outputSpec struct {
	what       string
	flag       string
	candidates []string
}

// On Linux 2D deformation fields come out as (empty) dcm files, on Windows
// as tiff, so every image-like output has several candidate names.
var outputs = map[models.Operation]outputSpec{
	models.OpDeformationField: {
		what:       "deformation field",
		flag:       "-def",
		candidates: result.Candidates("deformationField", "mhd", "dcm", "tiff", "nii"),
	},
	models.OpJacobianDeterminant: {
		what:       "spatial Jacobian determinant",
		flag:       "-jac",
		candidates: result.Candidates("spatialJacobian", "mhd", "dcm", "tiff", "nii"),
	},
	models.OpJacobianMatrix: {
		what:       "spatial Jacobian matrix",
		flag:       "-jacmat",
		candidates: result.Candidates("fullSpatialJacobian", "mhd", "dcm", "tiff", "nii"),
	},
	models.OpImage: {
		what:       "transformed image",
		flag:       "-in",
		candidates: result.Candidates("result", "tiff", "mhd", "nii", "dcm"),
	},
	models.OpPoints: {
		what:       "transformed points",
		flag:       "-def",
		candidates: result.Candidates("outputpoints", "txt", "vtk"),
	},
}

// Client runs transformix with a single transform parameter file
type Client struct {
	// Path is the transformix executable
	Path string

	// ParameterFile is the TransformParameters file produced by elastix
	ParameterFile string

	Runner Runner
	Logger zerolog.Logger

	// Watch logs files as transformix writes them
	Watch bool
}

// New creates a client applying parameterFile with the transformix at path
func New(path, parameterFile string, runner Runner, logger zerolog.Logger) *Client {
	if path == "" {
		path = DefaultPath
	}
	return &Client{
		Path:          path,
		ParameterFile: parameterFile,
		Runner:        runner,
		Logger:        logger.With().Str("component", "transformix").Logger(),
	}
}

// Command returns the transformix command line for op.
// input is the image or points file and is ignored by the other operations.
func (c *Client) Command(op models.Operation, input, outputDir string) ([]string, error) {
	s, ok := outputs[op]
	if !ok {
		return nil, fmt.Errorf("unsupported operation %s", op)
	}
	if c.ParameterFile == "" {
		return nil, ErrNoParameterFile
	}

	value := "all"
	if op.NeedsInput() {
		if input == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, op)
		}
		value = input
	}

	return []string{
		c.Path,
		"-tp", c.ParameterFile,
		"-out", outputDir,
		s.flag, value,
	}, nil
}

// Run executes req and returns the resolved output file in OutputPath
func (c *Client) Run(ctx context.Context, req *models.TransformRequest, verbose bool) (*models.ProcessResult, error) {
	client := c
	if req.ParameterFile != "" && req.ParameterFile != c.ParameterFile {
		copied := *c
		copied.ParameterFile = req.ParameterFile
		client = &copied
	}
	return client.run(ctx, req.Operation, req.Input, req.OutputDir, verbose)
}

// DeformationField writes the full deformation field to outputDir
func (c *Client) DeformationField(ctx context.Context, outputDir string, verbose bool) (string, error) {
	return c.path(c.run(ctx, models.OpDeformationField, "", outputDir, verbose))
}

// JacobianDeterminant writes the spatial Jacobian determinant to outputDir
func (c *Client) JacobianDeterminant(ctx context.Context, outputDir string, verbose bool) (string, error) {
	return c.path(c.run(ctx, models.OpJacobianDeterminant, "", outputDir, verbose))
}

// JacobianMatrix writes the full spatial Jacobian matrix to outputDir
func (c *Client) JacobianMatrix(ctx context.Context, outputDir string, verbose bool) (string, error) {
	return c.path(c.run(ctx, models.OpJacobianMatrix, "", outputDir, verbose))
}

// TransformImage resamples imagePath with the transform
func (c *Client) TransformImage(ctx context.Context, imagePath, outputDir string, verbose bool) (string, error) {
	return c.path(c.run(ctx, models.OpImage, imagePath, outputDir, verbose))
}

// TransformPoints maps the points in pointsPath through the transform
func (c *Client) TransformPoints(ctx context.Context, pointsPath, outputDir string, verbose bool) (string, error) {
	return c.path(c.run(ctx, models.OpPoints, pointsPath, outputDir, verbose))
}

func (c *Client) path(res *models.ProcessResult, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return res.OutputPath, nil
}

func (c *Client) run(ctx context.Context, op models.Operation, input, outputDir string, verbose bool) (*models.ProcessResult, error) {
	if info, err := os.Stat(outputDir); outputDir == "" || err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrOutputDirMissing, outputDir)
	}

	argv, err := c.Command(op, input, outputDir)
	if err != nil {
		return nil, err
	}

	var res *models.ProcessResult
	execute := func(ctx context.Context) error {
		var runErr error
		res, runErr = c.Runner.Run(ctx, argv, verbose)
		return runErr
	}

	if c.Watch {
		_, err = watch.During(ctx, outputDir, c.Logger, execute)
	} else {
		err = execute(ctx)
	}
	if err != nil {
		return nil, err
	}

	s := outputs[op]
	path, err := result.Locate(outputDir, s.what, s.candidates)
	if err != nil {
		return nil, err
	}
	res.OutputPath = path

	c.Logger.Info().
		Str("operation", op.String()).
		Str("output", path).
		Dur("elapsed", res.Duration).
		Msg("Transform finished")
	return res, nil
}
