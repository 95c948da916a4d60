package paramfile

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// KeyInitialTransform points at the previous stage of a cascade
	KeyInitialTransform = "InitialTransformParametersFileName"

	// KeyResultPixelType is the pixel type of resampled images
	KeyResultPixelType = "ResultImagePixelType"

	// KeyFinalInterpolationOrder is the B-spline order used for resampling
	KeyFinalInterpolationOrder = "FinalBSplineInterpolationOrder"

	noInitialTransform = "NoInitialTransform"
	maskedSuffix       = "_masked"
)

// ErrEmptyParameterFile is returned when a file holds no parameters
var ErrEmptyParameterFile = errors.New("parameter file has no parameters")

// Editor rewrites a transform parameter file so it can resample binary label
// images: float output and nearest-neighbour final interpolation.
type Editor struct {
	// Source is the transform parameter file written by elastix
	Source string

	// InitialTransform, when set, replaces the reference to the previous stage
	InitialTransform string

	// MaskedInitialTransform rewrites the existing previous-stage reference
	// to its masked sibling, e.g. TransformParameters_masked.0.txt. Ignored
	// when InitialTransform is set.
	MaskedInitialTransform bool

	// Output is where the edited file is written
	Output string
}

// Edit applies the label-resampling overrides to m in place
func (e *Editor) Edit(m *Map) error {
	if m.Len() == 0 {
		return ErrEmptyParameterFile
	}

	switch {
	case e.InitialTransform != "":
		m.SetString(KeyInitialTransform, e.InitialTransform)
	case e.MaskedInitialTransform:
		refs := m.Strings(KeyInitialTransform)
		if len(refs) == 1 && refs[0] != noInitialTransform {
			m.SetString(KeyInitialTransform, MaskedSibling(refs[0]))
		}
	}

	m.SetString(KeyResultPixelType, "float")
	m.Set(KeyFinalInterpolationOrder, " 0")
	return nil
}

// Render loads Source and returns its original text and the edited result
func (e *Editor) Render() (before, after string, err error) {
	raw, err := os.ReadFile(e.Source)
	if err != nil {
		return "", "", fmt.Errorf("reading parameter file: %w", err)
	}

	m, err := Parse(strings.NewReader(string(raw)))
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", e.Source, err)
	}
	if err := e.Edit(m); err != nil {
		return "", "", fmt.Errorf("editing %s: %w", e.Source, err)
	}
	return string(raw), m.String(), nil
}

// Apply reads Source, edits it and writes the result to Output
func (e *Editor) Apply() (*Map, error) {
	if e.Output == "" {
		return nil, errors.New("no output file given")
	}

	m, err := Load(e.Source)
	if err != nil {
		return nil, err
	}
	if err := e.Edit(m); err != nil {
		return nil, fmt.Errorf("editing %s: %w", e.Source, err)
	}
	if err := m.Save(e.Output); err != nil {
		return nil, err
	}
	return m, nil
}

// MaskedSibling returns the masked variant of a stage file, keeping the
// dot-separated stage index: ".../TransformParameters.0.txt" becomes
// ".../TransformParameters_masked.0.txt".
func MaskedSibling(path string) string {
	dirEnd := strings.LastIndexAny(path, `/\`) + 1
	dir, base := path[:dirEnd], path[dirEnd:]

	stem, rest := base, ""
	if idx := strings.Index(base, "."); idx >= 0 {
		stem, rest = base[:idx], base[idx:]
	}
	if strings.HasSuffix(stem, maskedSuffix) {
		return path
	}
	return dir + stem + maskedSuffix + rest
}
