package imageio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"goelastix/internal/models"
)

const niftiHeaderSize = 348

// niftiTypes maps NIfTI-1 datatype codes onto MetaImage element types
var niftiTypes = map[int16]string{
	2:    "MET_UCHAR",
	4:    "MET_SHORT",
	8:    "MET_INT",
	16:   "MET_FLOAT",
	64:   "MET_DOUBLE",
	256:  "MET_CHAR",
	512:  "MET_USHORT",
	768:  "MET_UINT",
	1024: "MET_LONG",
	1280: "MET_ULONG",
}

// LoadNIfTI reads a single-file NIfTI-1 image (.nii, or .nii.gz when the
// name ends in .gz). Vector images such as deformation fields are reduced to
// the per-voxel magnitude.
func LoadNIfTI(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", filepath.Base(path), err)
		}
		defer gz.Close()
		r = gz
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	vol, err := decodeNIfTI(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return vol, nil
}

func decodeNIfTI(raw []byte) (*models.Volume, error) {
	if len(raw) < niftiHeaderSize {
		return nil, fmt.Errorf("%w: NIfTI header too short", ErrUnsupported)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if order.Uint32(raw) != niftiHeaderSize {
		order = binary.BigEndian
		if order.Uint32(raw) != niftiHeaderSize {
			return nil, fmt.Errorf("%w: not a NIfTI-1 file", ErrUnsupported)
		}
	}
	// "ni1" marks a separate .hdr/.img pair
	if string(raw[344:347]) != "n+1" {
		return nil, fmt.Errorf("%w: NIfTI magic %q", ErrUnsupported, raw[344:347])
	}

	var dim [8]int
	for i := range dim {
		dim[i] = int(int16(order.Uint16(raw[40+2*i:])))
	}
	ndim := dim[0]
	if ndim < 2 || ndim > 5 {
		return nil, fmt.Errorf("%w: %d-dimensional NIfTI", ErrUnsupported, ndim)
	}

	dims := []int{dim[1], dim[2], 1}
	if ndim >= 3 {
		dims[2] = dim[3]
	}
	if ndim >= 4 && dim[4] > 1 {
		return nil, fmt.Errorf("%w: NIfTI time series", ErrUnsupported)
	}
	channels := 1
	if ndim == 5 {
		channels = dim[5]
	}

	datatype := int16(order.Uint16(raw[70:]))
	elementType, ok := niftiTypes[datatype]
	if !ok {
		return nil, fmt.Errorf("%w: NIfTI datatype %d", ErrUnsupported, datatype)
	}
	size := elementSizes[elementType]

	need, err := dataSize(dims, channels, size)
	if err != nil {
		return nil, err
	}

	offset := int(float32At(raw, 108, order))
	if offset < niftiHeaderSize || offset > len(raw) || len(raw)-offset < need {
		return nil, fmt.Errorf("NIfTI data too short: have %d bytes after offset %d, need %d",
			len(raw)-min(offset, len(raw)), offset, need)
	}
	data := raw[offset:]

	slope := float64(float32At(raw, 112, order))
	inter := float64(float32At(raw, 116, order))
	scaled := slope != 0 && !math.IsNaN(slope)

	vol := models.NewVolume(dims[0], dims[1], dims[2])
	vol.Spacing.X = float64(float32At(raw, 80, order))
	vol.Spacing.Y = float64(float32At(raw, 84, order))
	vol.Spacing.Z = float64(float32At(raw, 88, order))

	// components are stored one full volume after another
	voxels := dims[0] * dims[1] * dims[2]
	for i := 0; i < voxels; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := element(data[(c*voxels+i)*size:], elementType, order)
			if scaled {
				v = v*slope + inter
			}
			if channels == 1 {
				sum = v
				break
			}
			sum += v * v
		}
		if channels > 1 {
			sum = math.Sqrt(sum)
		}
		vol.Data[i] = sum
	}
	return vol, nil
}

func float32At(raw []byte, offset int, order binary.ByteOrder) float32 {
	return math.Float32frombits(order.Uint32(raw[offset:]))
}
