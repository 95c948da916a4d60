package imageio

import (
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"goelastix/internal/models"
)

// LoadDICOM reads the pixel data of a DICOM file. Each frame becomes one
// slice of the volume.
func LoadDICOM(path string) (*models.Volume, error) {
	dataset, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing DICOM %s: %w", filepath.Base(path), err)
	}

	pixelData, err := dataset.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no pixel data", ErrUnsupported, filepath.Base(path))
	}

	info := dicom.MustGetPixelDataInfo(pixelData.Value)
	frames := make([]image.Image, 0, len(info.Frames))
	for i, fr := range info.Frames {
		img, err := fr.GetImage()
		if err != nil {
			return nil, fmt.Errorf("decoding DICOM frame %d: %w", i, err)
		}
		frames = append(frames, img)
	}

	vol, err := stackImages(frames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if spacing := decimalStrings(&dataset, tag.PixelSpacing); len(spacing) >= 2 {
		// row spacing first, then column spacing
		vol.Spacing.Y, vol.Spacing.X = spacing[0], spacing[1]
	}
	if thickness := decimalStrings(&dataset, tag.SliceThickness); len(thickness) >= 1 {
		vol.Spacing.Z = thickness[0]
	}
	return vol, nil
}

// decimalStrings returns a DS element as floats, or nil when the element is
// absent or malformed
func decimalStrings(dataset *dicom.Dataset, t tag.Tag) []float64 {
	el, err := dataset.FindElementByTag(t)
	if err != nil {
		return nil
	}
	values, ok := el.Value.GetValue().([]string)
	if !ok {
		return nil
	}

	out := make([]float64, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, `\`) {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		}
	}
	return out
}
