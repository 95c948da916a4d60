// Package imageio loads registration inputs and results into volumes so they
// can be inspected with the slicer.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"goelastix/internal/models"
)

// ErrUnsupported is returned for formats or encodings that cannot be read
var ErrUnsupported = errors.New("unsupported image")

// maxDataBytes bounds the raw pixel data of a single image
const maxDataBytes = math.MaxInt32

// dataSize returns the byte length of pixel data with the given dimensions.
// Every factor must be positive and the product must stay within maxDataBytes.
func dataSize(dims []int, channels, elementSize int) (int, error) {
	total := 1
	for _, f := range append(append([]int(nil), dims...), channels, elementSize) {
		if f <= 0 {
			return 0, fmt.Errorf("%w: image size %v", ErrUnsupported, dims)
		}
		if total > maxDataBytes/f {
			return 0, fmt.Errorf("%w: image size %v exceeds %d bytes", ErrUnsupported, dims, maxDataBytes)
		}
		total *= f
	}
	return total, nil
}

// LoadVolume reads the image at path. The format follows the extension:
// .mhd/.mha (MetaImage), .nii/.nii.gz (NIfTI-1), .dcm (DICOM), .tif/.tiff,
// .png, .jpg/.jpeg. 2D images load as a volume with a depth of 1.
func LoadVolume(path string) (*models.Volume, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".nii.gz") {
		return LoadNIfTI(path)
	}

	switch filepath.Ext(lower) {
	case ".mhd", ".mha":
		return LoadMetaImage(path)
	case ".nii":
		return LoadNIfTI(path)
	case ".dcm":
		return LoadDICOM(path)
	case ".tif", ".tiff":
		return loadRaster(path, tiff.Decode)
	case ".png", ".jpg", ".jpeg":
		return loadRaster(path, func(r io.Reader) (image.Image, error) {
			img, _, err := image.Decode(r)
			return img, err
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
}

func loadRaster(path string, decode func(io.Reader) (image.Image, error)) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return FromImage(img), nil
}

// FromImage converts a 2D image into a single-slice volume of 16-bit gray
// intensities
func FromImage(img image.Image) *models.Volume {
	b := img.Bounds()
	vol := models.NewVolume(b.Dx(), b.Dy(), 1)
	copySlice(vol, 0, img)
	return vol
}

// stackImages builds a volume with one slice per image. All images must
// have the same size.
func stackImages(images []image.Image) (*models.Volume, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no image frames", ErrUnsupported)
	}

	b := images[0].Bounds()
	vol := models.NewVolume(b.Dx(), b.Dy(), len(images))
	for z, img := range images {
		if img.Bounds().Dx() != b.Dx() || img.Bounds().Dy() != b.Dy() {
			return nil, fmt.Errorf("frame %d is %dx%d, frame 0 is %dx%d",
				z, img.Bounds().Dx(), img.Bounds().Dy(), b.Dx(), b.Dy())
		}
		copySlice(vol, z, img)
	}
	return vol, nil
}

func copySlice(vol *models.Volume, z int, img image.Image) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			vol.Set(x, y, z, float64(g.Y))
		}
	}
}
