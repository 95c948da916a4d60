package imageio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"goelastix/internal/models"
)

// elementSizes maps MetaImage element types to their byte width
var elementSizes = map[string]int{
	"MET_UCHAR":  1,
	"MET_CHAR":   1,
	"MET_USHORT": 2,
	"MET_SHORT":  2,
	"MET_UINT":   4,
	"MET_INT":    4,
	"MET_ULONG":  8,
	"MET_LONG":   8,
	"MET_FLOAT":  4,
	"MET_DOUBLE": 8,
}

// metaHeader is the subset of MetaImage header fields elastix writes
type metaHeader struct {
	dims        []int
	spacing     []float64
	elementType string
	channels    int
	msb         bool
	compressed  bool
	dataFile    string
	headerSize  int

	// dataOffset is where LOCAL data starts in the header file
	dataOffset int

	// need is the byte length of the pixel data
	need int
}

func parseMetaHeader(raw []byte) (*metaHeader, error) {
	h := &metaHeader{channels: 1}

	offset := 0
	reader := bufio.NewReader(bytes.NewReader(raw))
	for {
		line, err := reader.ReadString('\n')
		offset += len(line)

		key, value, ok := strings.Cut(line, "=")
		if ok {
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if perr := h.set(key, value); perr != nil {
				return nil, perr
			}
			if key == "ElementDataFile" {
				h.dataOffset = offset
				break
			}
		}
		if err != nil {
			break
		}
	}

	if h.dataFile == "" {
		return nil, fmt.Errorf("%w: MetaImage header without ElementDataFile", ErrUnsupported)
	}
	if len(h.dims) < 2 || len(h.dims) > 3 {
		return nil, fmt.Errorf("%w: %d-dimensional MetaImage", ErrUnsupported, len(h.dims))
	}
	if _, ok := elementSizes[h.elementType]; !ok {
		return nil, fmt.Errorf("%w: element type %q", ErrUnsupported, h.elementType)
	}
	if h.channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupported, h.channels)
	}
	if h.compressed {
		return nil, fmt.Errorf("%w: compressed MetaImage data", ErrUnsupported)
	}

	need, err := dataSize(h.dims, h.channels, elementSizes[h.elementType])
	if err != nil {
		return nil, err
	}
	h.need = need
	return h, nil
}

func (h *metaHeader) set(key, value string) error {
	var err error
	switch key {
	case "NDims":
		// DimSize carries the same information
	case "DimSize":
		h.dims, err = parseInts(value)
	case "ElementSpacing", "ElementSize":
		if h.spacing == nil || key == "ElementSpacing" {
			h.spacing, err = parseFloats(value)
		}
	case "ElementType":
		h.elementType = strings.ToUpper(value)
	case "ElementNumberOfChannels":
		h.channels, err = strconv.Atoi(value)
	case "BinaryDataByteOrderMSB", "ElementByteOrderMSB":
		h.msb = strings.EqualFold(value, "True")
	case "CompressedData":
		h.compressed = strings.EqualFold(value, "True")
	case "HeaderSize":
		h.headerSize, err = strconv.Atoi(value)
	case "ElementDataFile":
		h.dataFile = value
	}
	if err != nil {
		return fmt.Errorf("MetaImage field %s: %w", key, err)
	}
	return nil
}

// LoadMetaImage reads a .mhd header with its raw data file, or a .mha file
// with LOCAL data. Multi-channel images (e.g. deformation fields) are reduced
// to the per-voxel vector magnitude.
func LoadMetaImage(path string) (*models.Volume, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MetaImage header: %w", err)
	}

	h, err := parseMetaHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	var data []byte
	if strings.EqualFold(h.dataFile, "LOCAL") {
		data = raw[h.dataOffset:]
	} else if strings.EqualFold(h.dataFile, "LIST") {
		return nil, fmt.Errorf("%w: ElementDataFile LIST", ErrUnsupported)
	} else {
		dataPath := h.dataFile
		if !filepath.IsAbs(dataPath) {
			dataPath = filepath.Join(filepath.Dir(path), dataPath)
		}
		data, err = os.ReadFile(dataPath)
		if err != nil {
			return nil, fmt.Errorf("reading MetaImage data: %w", err)
		}
	}

	return decodeMetaData(h, data)
}

func decodeMetaData(h *metaHeader, data []byte) (*models.Volume, error) {
	width, height, depth := h.dims[0], h.dims[1], 1
	if len(h.dims) == 3 {
		depth = h.dims[2]
	}

	size := elementSizes[h.elementType]
	voxels := width * height * depth
	need := h.need

	switch {
	case h.headerSize > 0:
		if h.headerSize > len(data) {
			return nil, fmt.Errorf("header size %d exceeds data length %d", h.headerSize, len(data))
		}
		data = data[h.headerSize:]
	case h.headerSize == -1 && len(data) >= need:
		data = data[len(data)-need:]
	}
	if len(data) < need {
		return nil, fmt.Errorf("MetaImage data too short: have %d bytes, need %d", len(data), need)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if h.msb {
		order = binary.BigEndian
	}

	vol := models.NewVolume(width, height, depth)
	if len(h.spacing) >= 2 {
		vol.Spacing.X, vol.Spacing.Y = h.spacing[0], h.spacing[1]
	}
	if len(h.spacing) >= 3 {
		vol.Spacing.Z = h.spacing[2]
	}

	for i := 0; i < voxels; i++ {
		if h.channels == 1 {
			vol.Data[i] = element(data[i*size:], h.elementType, order)
			continue
		}
		var sum float64
		for c := 0; c < h.channels; c++ {
			v := element(data[(i*h.channels+c)*size:], h.elementType, order)
			sum += v * v
		}
		vol.Data[i] = math.Sqrt(sum)
	}
	return vol, nil
}

func element(b []byte, elementType string, order binary.ByteOrder) float64 {
	switch elementType {
	case "MET_UCHAR":
		return float64(b[0])
	case "MET_CHAR":
		return float64(int8(b[0]))
	case "MET_USHORT":
		return float64(order.Uint16(b))
	case "MET_SHORT":
		return float64(int16(order.Uint16(b)))
	case "MET_UINT":
		return float64(order.Uint32(b))
	case "MET_INT":
		return float64(int32(order.Uint32(b)))
	case "MET_ULONG":
		return float64(order.Uint64(b))
	case "MET_LONG":
		return float64(int64(order.Uint64(b)))
	case "MET_FLOAT":
		return float64(math.Float32frombits(order.Uint32(b)))
	case "MET_DOUBLE":
		return math.Float64frombits(order.Uint64(b))
	}
	return 0
}

func parseInts(value string) ([]int, error) {
	fields := strings.Fields(value)
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseFloats(value string) ([]float64, error) {
	fields := strings.Fields(value)
	out := make([]float64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
