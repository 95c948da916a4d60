// Package visualization provides a slice-by-slice viewer for registration
// inputs and results.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"goelastix/internal/models"
)

// Slicer scrolls through the axial slices of a volume.
// Intensities are windowed between the volume's minimum and maximum.
type Slicer struct {
	volume *models.Volume

	// index is the slice currently shown
	index int

	// intensity window used when rendering
	low, high float64
}

// NewSlicer creates a slicer positioned at defaultIndex.
// An index past the last slice is clamped to the last slice.
func NewSlicer(volume *models.Volume, defaultIndex int) (*Slicer, error) {
	if volume == nil || volume.Depth <= 0 || volume.Width <= 0 || volume.Height <= 0 {
		return nil, fmt.Errorf("volume must have at least one voxel")
	}
	if len(volume.Data) < volume.Width*volume.Height*volume.Depth {
		return nil, fmt.Errorf("volume data has %d voxels, dimensions need %d",
			len(volume.Data), volume.Width*volume.Height*volume.Depth)
	}

	s := &Slicer{volume: volume}
	s.low = floats.Min(volume.Data)
	s.high = floats.Max(volume.Data)

	switch {
	case defaultIndex < 0:
		s.index = 0
	case defaultIndex >= volume.Depth:
		s.index = volume.Depth - 1
	default:
		s.index = defaultIndex
	}
	return s, nil
}

// Index returns the current slice
func (s *Slicer) Index() int {
	return s.index
}

// Depth returns the number of slices
func (s *Slicer) Depth() int {
	return s.volume.Depth
}

// Title is "<current>/<last>"
func (s *Slicer) Title() string {
	return fmt.Sprintf("%d/%d", s.index, s.volume.Depth-1)
}

// Next moves one slice forward and stops at the last slice
func (s *Slicer) Next() bool {
	if s.index >= s.volume.Depth-1 {
		return false
	}
	s.index++
	return true
}

// Previous moves one slice back and stops at the first slice
func (s *Slicer) Previous() bool {
	if s.index == 0 {
		return false
	}
	s.index--
	return true
}

// SetSlice jumps to index. Out-of-range indices leave the slicer unchanged.
func (s *Slicer) SetSlice(index int) bool {
	if index < 0 || index >= s.volume.Depth {
		return false
	}
	s.index = index
	return true
}

// Window returns the intensity range mapped to black and white
func (s *Slicer) Window() (low, high float64) {
	return s.low, s.high
}

// Current renders the current slice
func (s *Slicer) Current() *image.Gray16 {
	img, _ := s.ExtractSlice("z", s.index)
	return img
}

// normalize maps a voxel value into the 16-bit gray range
func (s *Slicer) normalize(v float64) uint16 {
	if s.high <= s.low {
		return 0
	}
	t := (v - s.low) / (s.high - s.low)
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 65535
	}
	return uint16(t * 65535)
}

// ExtractSlice extracts a 2D slice along the given axis:
// "x" gives the YZ plane, "y" the XZ plane and "z" the XY plane.
func (s *Slicer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	v := s.volume

	var img *image.Gray16
	switch axis {
	case "x", "X":
		if position >= v.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.Depth, v.Height))
		for y := 0; y < v.Height; y++ {
			for z := 0; z < v.Depth; z++ {
				img.SetGray16(z, y, color.Gray16{Y: s.normalize(v.At(position, y, z))})
			}
		}

	case "y", "Y":
		if position >= v.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.Width, v.Depth))
		for z := 0; z < v.Depth; z++ {
			for x := 0; x < v.Width; x++ {
				img.SetGray16(x, z, color.Gray16{Y: s.normalize(v.At(x, position, z))})
			}
		}

	case "z", "Z":
		if position >= v.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.Depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.Width, v.Height))
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: s.normalize(v.At(x, y, position))})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion copies a 3D subregion of the volume
func (s *Slicer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) ([]float64, error) {
	v := s.volume
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > v.Width || startY+sizeY > v.Height || startZ+sizeZ > v.Depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := make([]float64, 0, sizeX*sizeY*sizeZ)
	for z := startZ; z < startZ+sizeZ; z++ {
		for y := startY; y < startY+sizeY; y++ {
			row := v.Index(startX, y, z)
			region = append(region, v.Data[row:row+sizeX]...)
		}
	}
	return region, nil
}

// SaveSlice writes a slice as a JPEG image
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence writes every slice along axis to outputDir as
// slice_<axis>_<nnn>.jpg and returns the number written
func (s *Slicer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	var count int
	switch axis {
	case "x", "X":
		count = s.volume.Width
	case "y", "Y":
		count = s.volume.Height
	case "z", "Z":
		count = s.volume.Depth
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	for pos := 0; pos < count; pos++ {
		img, err := s.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}
	return count, nil
}
