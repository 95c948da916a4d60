package models

import (
	"fmt"
	"strings"
	"time"
)

// RegistrationRequest describes a single elastix run
type RegistrationRequest struct {
	// FixedImage and MovingImage are only used as a pair
	FixedImage  string
	MovingImage string

	// FixedPoints and MovingPoints are only used as a pair
	FixedPoints  string
	MovingPoints string

	// FixedMask and MovingMask are independent of each other
	FixedMask  string
	MovingMask string

	// InitialTransform is an optional transform parameter file applied first
	InitialTransform string

	// ParameterFiles are passed in order, one registration stage each
	ParameterFiles []string

	// OutputDir must exist before the run starts
	OutputDir string
}

// Operation selects what transformix computes
type Operation int

const (
	OpImage Operation = iota
	OpPoints
	OpDeformationField
	OpJacobianDeterminant
	OpJacobianMatrix
)

var operationNames = map[Operation]string{
	OpImage:               "image",
	OpPoints:              "points",
	OpDeformationField:    "deformation",
	OpJacobianDeterminant: "jacobian",
	OpJacobianMatrix:      "jacobian-matrix",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// NeedsInput reports whether the operation takes an image or points file
func (o Operation) NeedsInput() bool {
	return o == OpImage || o == OpPoints
}

// ParseOperation maps a name such as "jacobian-matrix" to its Operation
func ParseOperation(name string) (Operation, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown transform operation %q", name)
}

// TransformRequest describes a single transformix run
type TransformRequest struct {
	// ParameterFile is a transform parameter file produced by a registration
	ParameterFile string

	Operation Operation

	// Input is the image or points file for OpImage and OpPoints
	Input string

	OutputDir string
}

// ProcessResult is the outcome of a successful external tool run.
// Failed runs are reported as errors and never produce a ProcessResult.
type ProcessResult struct {
	RunID    string
	Command  []string
	ExitCode int
	Stderr   string
	Duration time.Duration

	// OutputPath is the resolved result file, when the operation has one
	OutputPath string
}

// RegistrationResult adds the files elastix leaves in the output directory
type RegistrationResult struct {
	ProcessResult

	// TransformParameterFiles holds TransformParameters.<i>.txt for every stage
	TransformParameterFiles []string

	// ResultImage is empty when elastix was configured not to write one
	ResultImage string

	IterationLogs []string
}

// FinalTransform returns the transform parameter file of the last stage
func (r *RegistrationResult) FinalTransform() string {
	if len(r.TransformParameterFiles) == 0 {
		return ""
	}
	return r.TransformParameterFiles[len(r.TransformParameterFiles)-1]
}
