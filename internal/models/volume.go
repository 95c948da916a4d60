package models

// Volume is a 3D image loaded from a registration input or result
type Volume struct {
	// Data holds the voxels in z-major, then row-major order
	Data []float64

	// Width is the number of voxels along x
	Width int

	// Height is the number of voxels along y
	Height int

	// Depth is the number of slices; 2D images have a depth of 1
	Depth int

	// Spacing is the physical size of each voxel in mm
	Spacing struct {
		X, Y, Z float64
	}
}

// NewVolume allocates a zeroed volume with unit spacing
func NewVolume(width, height, depth int) *Volume {
	v := &Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
	v.Spacing.X, v.Spacing.Y, v.Spacing.Z = 1, 1, 1
	return v
}

// Index returns the offset of voxel (x, y, z) in Data
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the voxel value at (x, y, z)
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a voxel value at (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}
