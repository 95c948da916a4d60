package imageio

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadMetaImageWithRawFile(t *testing.T) {
	dir := t.TempDir()
	header := "ObjectType = Image\nNDims = 3\nDimSize = 2 2 2\nElementSpacing = 0.5 0.5 2\n" +
		"ElementType = MET_SHORT\nElementByteOrderMSB = False\nElementDataFile = result.0.raw\n"
	path := writeFile(t, dir, "result.0.mhd", []byte(header))

	var raw bytes.Buffer
	for i := int16(0); i < 8; i++ {
		require.NoError(t, binary.Write(&raw, binary.LittleEndian, i-4))
	}
	writeFile(t, dir, "result.0.raw", raw.Bytes())

	vol, err := LoadVolume(path)
	require.NoError(t, err)
	assert.Equal(t, 2, vol.Width)
	assert.Equal(t, 2, vol.Height)
	assert.Equal(t, 2, vol.Depth)
	assert.Equal(t, 0.5, vol.Spacing.X)
	assert.Equal(t, 2.0, vol.Spacing.Z)
	assert.Equal(t, []float64{-4, -3, -2, -1, 0, 1, 2, 3}, vol.Data)
	assert.Equal(t, 3.0, vol.At(1, 1, 1))
}

func TestLoadMetaImageLocalBigEndian(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("NDims = 2\nDimSize = 3 1\nElementType = MET_FLOAT\nBinaryDataByteOrderMSB = True\nElementDataFile = LOCAL\n")
	for _, v := range []float32{1.5, -2, 0.25} {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, v))
	}
	path := writeFile(t, t.TempDir(), "image.mha", buf.Bytes())

	vol, err := LoadVolume(path)
	require.NoError(t, err)
	assert.Equal(t, 1, vol.Depth)
	assert.Equal(t, []float64{1.5, -2, 0.25}, vol.Data)
}

func TestLoadMetaImageVectorMagnitude(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("NDims = 2\nDimSize = 2 1\nElementNumberOfChannels = 2\nElementType = MET_DOUBLE\nElementDataFile = LOCAL\n")
	for _, v := range []float64{3, 4, 0, -2} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	path := writeFile(t, t.TempDir(), "deformationField.mha", buf.Bytes())

	vol, err := LoadVolume(path)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, vol.Data[0], 1e-12)
	assert.InDelta(t, 2.0, vol.Data[1], 1e-12)
}

func TestLoadMetaImageErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"compressed.mhd": "DimSize = 2 2\nElementType = MET_UCHAR\nCompressedData = True\nElementDataFile = LOCAL\n",
		"type.mhd":       "DimSize = 2 2\nElementType = MET_FANCY\nElementDataFile = LOCAL\n",
		"dims.mhd":       "DimSize = 2 2 2 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n",
		"nodata.mhd":     "DimSize = 2 2\nElementType = MET_UCHAR\n",
		"negative.mhd":   "NDims = 3\nDimSize = -2 3 1\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n",
		"zero.mhd":       "DimSize = 0 4\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n",
		"huge.mhd":       "DimSize = 100000 100000 100000\nElementType = MET_DOUBLE\nElementDataFile = LOCAL\n",
		"channels.mhd":   "DimSize = 2 2\nElementNumberOfChannels = 0\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n",
	}
	for name, header := range cases {
		_, err := LoadVolume(writeFile(t, dir, name, []byte(header)))
		assert.ErrorIs(t, err, ErrUnsupported, name)
	}

	short := writeFile(t, dir, "short.mha", []byte("DimSize = 4 4\nElementType = MET_UCHAR\nElementDataFile = LOCAL\nab"))
	_, err := LoadVolume(short)
	assert.ErrorContains(t, err, "too short")

	_, err = LoadVolume(filepath.Join(dir, "volume.vtk"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func gradient() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(x*1000 + y)})
		}
	}
	return img
}

func TestLoadTIFF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, gradient(), nil))
	path := writeFile(t, t.TempDir(), "result.tiff", buf.Bytes())

	vol, err := LoadVolume(path)
	require.NoError(t, err)
	assert.Equal(t, 4, vol.Width)
	assert.Equal(t, 2, vol.Height)
	assert.Equal(t, 1, vol.Depth)
	assert.Equal(t, 3001.0, vol.At(3, 1, 0))
}

func TestLoadPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient()))
	path := writeFile(t, t.TempDir(), "slice.png", buf.Bytes())

	vol, err := LoadVolume(path)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, vol.At(2, 0, 0))
	assert.False(t, math.IsNaN(vol.At(0, 1, 0)))
}

func TestDataSize(t *testing.T) {
	n, err := dataSize([]int{4, 3, 2}, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 4*3*2*3*8, n)

	for _, dims := range [][]int{{-2, 3, 1}, {0, 4}, {math.MaxInt32, 2}, {math.MaxInt, math.MaxInt}} {
		_, err := dataSize(dims, 1, 1)
		assert.ErrorIs(t, err, ErrUnsupported, "%v", dims)
	}
}

// niftiImage builds a single-file NIfTI-1 image with 0.5 x 0.75 x 2 voxels
func niftiImage(t *testing.T, order binary.ByteOrder, dim [8]int16, datatype int16, slope, inter float32, values any) []byte {
	t.Helper()
	hdr := make([]byte, 352)
	order.PutUint32(hdr, 348)
	for i, d := range dim {
		order.PutUint16(hdr[40+2*i:], uint16(d))
	}
	order.PutUint16(hdr[70:], uint16(datatype))
	for i, p := range []float32{0.5, 0.75, 2} {
		order.PutUint32(hdr[80+4*i:], math.Float32bits(p))
	}
	order.PutUint32(hdr[108:], math.Float32bits(352))
	order.PutUint32(hdr[112:], math.Float32bits(slope))
	order.PutUint32(hdr[116:], math.Float32bits(inter))
	copy(hdr[344:], "n+1\x00")

	buf := bytes.NewBuffer(hdr)
	require.NoError(t, binary.Write(buf, order, values))
	return buf.Bytes()
}

func TestLoadNIfTIScaledFloat(t *testing.T) {
	data := niftiImage(t, binary.LittleEndian, [8]int16{3, 2, 2, 1, 1, 1, 1, 1}, 16, 2, 1,
		[]float32{0, 1, 2, 3})
	path := writeFile(t, t.TempDir(), "spatialJacobian.nii", data)

	vol, err := LoadVolume(path)
	require.NoError(t, err)
	assert.Equal(t, 2, vol.Width)
	assert.Equal(t, 2, vol.Height)
	assert.Equal(t, 1, vol.Depth)
	assert.Equal(t, []float64{1, 3, 5, 7}, vol.Data)
	assert.Equal(t, 0.5, vol.Spacing.X)
	assert.Equal(t, 0.75, vol.Spacing.Y)
	assert.Equal(t, 2.0, vol.Spacing.Z)
}

func TestLoadNIfTIGzipBigEndian(t *testing.T) {
	data := niftiImage(t, binary.BigEndian, [8]int16{2, 3, 1, 1, 1, 1, 1, 1}, 4, 0, 0,
		[]int16{-1, 0, 7})

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	path := writeFile(t, t.TempDir(), "result.nii.gz", gz.Bytes())

	vol, err := LoadVolume(path)
	require.NoError(t, err)
	assert.Equal(t, 3, vol.Width)
	assert.Equal(t, []float64{-1, 0, 7}, vol.Data)
}

func TestLoadNIfTIVectorMagnitude(t *testing.T) {
	// components are stored one after another: x of both voxels, then y, then z
	data := niftiImage(t, binary.LittleEndian, [8]int16{5, 2, 1, 1, 1, 3, 1, 1}, 64, 0, 0,
		[]float64{3, 0, 4, 0, 0, 2})
	path := writeFile(t, t.TempDir(), "deformationField.nii", data)

	vol, err := LoadVolume(path)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, vol.Data[0], 1e-12)
	assert.InDelta(t, 2.0, vol.Data[1], 1e-12)
}

func TestLoadNIfTIErrors(t *testing.T) {
	dir := t.TempDir()

	pair := niftiImage(t, binary.LittleEndian, [8]int16{2, 1, 1, 1, 1, 1, 1, 1}, 2, 0, 0, []uint8{1})
	copy(pair[344:], "ni1")
	negative := niftiImage(t, binary.LittleEndian, [8]int16{3, -2, 3, 1, 1, 1, 1, 1}, 2, 0, 0, []uint8{1})
	series := niftiImage(t, binary.LittleEndian, [8]int16{4, 1, 1, 1, 2, 1, 1, 1}, 2, 0, 0, []uint8{1, 2})
	datatype := niftiImage(t, binary.LittleEndian, [8]int16{2, 1, 1, 1, 1, 1, 1, 1}, 128, 0, 0, []uint8{1, 2, 3})

	cases := map[string][]byte{
		"pair.nii":     pair,
		"negative.nii": negative,
		"series.nii":   series,
		"datatype.nii": datatype,
		"garbage.nii":  bytes.Repeat([]byte{0xff}, 400),
		"tiny.nii":     []byte("n+1"),
	}
	for name, data := range cases {
		_, err := LoadVolume(writeFile(t, dir, name, data))
		assert.ErrorIs(t, err, ErrUnsupported, name)
	}

	short := niftiImage(t, binary.LittleEndian, [8]int16{3, 4, 4, 4, 1, 1, 1, 1}, 2, 0, 0, []uint8{1, 2})
	_, err := LoadVolume(writeFile(t, dir, "short.nii", short))
	assert.ErrorContains(t, err, "too short")
}

func TestStackImages(t *testing.T) {
	a, b := gradient(), gradient()
	b.SetGray16(0, 0, color.Gray16{Y: 9})

	vol, err := stackImages([]image.Image{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, vol.Depth)
	assert.Equal(t, 3001.0, vol.At(3, 1, 0))
	assert.Equal(t, 9.0, vol.At(0, 0, 1))

	_, err = stackImages(nil)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = stackImages([]image.Image{a, image.NewGray16(image.Rect(0, 0, 2, 2))})
	assert.ErrorContains(t, err, "frame 1 is 2x2")
}

func TestLoadDICOMRejectsGarbage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "result.dcm", []byte("not a dicom file"))

	_, err := LoadVolume(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "parsing DICOM result.dcm")
}

func TestLoadNIfTIMissingFile(t *testing.T) {
	_, err := LoadVolume(filepath.Join(t.TempDir(), "missing.nii"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
