// Package result finds the files an external tool left in its output
// directory.
package result

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MissingOutputError is returned when none of the expected files exist
type MissingOutputError struct {
	// What names the output, e.g. "deformation field"
	What       string
	Dir        string
	Candidates []string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("%s not found in results folder %s (looked for %s)",
		e.What, e.Dir, strings.Join(e.Candidates, ", "))
}

// Candidates expands base and extensions into ordered filenames.
// Candidates("spatialJacobian", "mhd", "nii") yields spatialJacobian.mhd,
// spatialJacobian.nii.
func Candidates(base string, exts ...string) []string {
	names := make([]string, 0, len(exts))
	for _, ext := range exts {
		names = append(names, base+"."+strings.TrimPrefix(ext, "."))
	}
	return names
}

// Locate returns the path of the first candidate present in dir.
// The directory is listed once; order of candidates decides ties.
func Locate(dir, what string, candidates []string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing results folder: %w", err)
	}

	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			present[entry.Name()] = true
		}
	}

	for _, name := range candidates {
		if present[name] {
			return filepath.Join(dir, name), nil
		}
	}

	return "", &MissingOutputError{What: what, Dir: dir, Candidates: candidates}
}

// Glob returns the files in dir matching a doublestar pattern, sorted
func Glob(dir, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("matching %q in %s: %w", pattern, dir, err)
	}

	sort.Strings(matches)
	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	return paths, nil
}
