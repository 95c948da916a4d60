package elastix

import (
	"errors"
	"fmt"
	"os"

	"goelastix/internal/models"
)

var (
	// ErrOutputDirMissing is returned when the output directory does not exist
	ErrOutputDirMissing = errors.New("output directory does not exist")

	// ErrNoParameterFiles is returned when no parameter file is given
	ErrNoParameterFiles = errors.New("at least one parameter file is required")

	// ErrEmptyParameterFile is returned for an empty entry in the parameter list
	ErrEmptyParameterFile = errors.New("parameter file path is empty")
)

// ConfigError reports a flag pair with only one half set in strict mode
type ConfigError struct {
	Flags   [2]string
	Present string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("flags %s and %s must be given together: only %s was set",
		e.Flags[0], e.Flags[1], e.Present)
}

// flagPair emits both flags or neither
type flagPair struct {
	firstFlag, first   string
	secondFlag, second string
}

func (p flagPair) complete() bool {
	return p.first != "" && p.second != ""
}

func (p flagPair) partial() bool {
	return (p.first == "") != (p.second == "")
}

func (p flagPair) args() []string {
	if !p.complete() {
		return nil
	}
	return []string{p.firstFlag, p.first, p.secondFlag, p.second}
}

func (p flagPair) configError() *ConfigError {
	present := p.firstFlag
	if p.first == "" {
		present = p.secondFlag
	}
	return &ConfigError{Flags: [2]string{p.firstFlag, p.secondFlag}, Present: present}
}

func pairs(req *models.RegistrationRequest) []flagPair {
	return []flagPair{
		{firstFlag: "-f", first: req.FixedImage, secondFlag: "-m", second: req.MovingImage},
		{firstFlag: "-fp", first: req.FixedPoints, secondFlag: "-mp", second: req.MovingPoints},
	}
}

// validate checks the preconditions that must hold before elastix is launched
func validate(req *models.RegistrationRequest) error {
	info, err := os.Stat(req.OutputDir)
	if req.OutputDir == "" || err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q", ErrOutputDirMissing, req.OutputDir)
	}

	if len(req.ParameterFiles) == 0 {
		return ErrNoParameterFiles
	}
	for i, p := range req.ParameterFiles {
		if p == "" {
			return fmt.Errorf("%w (entry %d)", ErrEmptyParameterFile, i)
		}
	}
	return nil
}

// buildArgs returns the elastix arguments for req, without the executable.
// Half-present pairs are dropped and reported through skipped; in strict
// mode they are an error instead.
func buildArgs(req *models.RegistrationRequest, strict bool) (args []string, skipped []flagPair, err error) {
	for _, p := range pairs(req) {
		if p.partial() {
			if strict {
				return nil, nil, p.configError()
			}
			skipped = append(skipped, p)
			continue
		}
		args = append(args, p.args()...)
	}

	if req.FixedMask != "" {
		args = append(args, "-fMask", req.FixedMask)
	}
	if req.MovingMask != "" {
		args = append(args, "-mMask", req.MovingMask)
	}

	if req.InitialTransform != "" {
		args = append(args, "-t0", req.InitialTransform)
	}

	for _, p := range req.ParameterFiles {
		args = append(args, "-p", p)
	}

	args = append(args, "-out", req.OutputDir)
	return args, skipped, nil
}
