package nifti

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/josetascon/cinemri-simulation/internal/models"
)

// image is a decoded file before it is split into a scalar volume or field
type image struct {
	geometry   models.Geometry
	components int
	data       []float64
}

// ReadVolume loads a scalar image. 2D images become volumes with depth 1.
func ReadVolume(path string) (*models.Volume, error) {
	img, err := read(path)
	if err != nil {
		return nil, err
	}
	if img.components != 1 {
		return nil, fmt.Errorf("%s: expected a scalar image, found %d components", path, img.components)
	}
	return &models.Volume{Geometry: img.geometry, Data: img.data}, nil
}

// ReadField loads a 3-component displacement field.
func ReadField(path string) (*models.DisplacementField, error) {
	img, err := read(path)
	if err != nil {
		return nil, err
	}
	if img.components != 3 {
		return nil, fmt.Errorf("%s: expected a 3-component displacement field, found %d components", path, img.components)
	}

	n := img.geometry.NumVoxels()
	return &models.DisplacementField{
		Geometry: img.geometry,
		X:        img.data[:n:n],
		Y:        img.data[n : 2*n : 2*n],
		Z:        img.data[2*n:],
	}, nil
}

// WriteVolume stores v as a float32 3D image.
func WriteVolume(path string, v *models.Volume) error {
	if len(v.Data) != v.NumVoxels() {
		return fmt.Errorf("volume data has %d values for %d voxels", len(v.Data), v.NumVoxels())
	}
	h := newHeader(v.Geometry, 3, 1)
	return write(path, h, v.Data)
}

// WriteField stores f as a float32 vector image (intent vector, dim[5] = 3).
func WriteField(path string, f *models.DisplacementField) error {
	n := f.NumVoxels()
	if len(f.X) != n || len(f.Y) != n || len(f.Z) != n {
		return fmt.Errorf("field components do not match %d voxels", n)
	}
	data := make([]float64, 0, 3*n)
	data = append(data, f.X...)
	data = append(data, f.Y...)
	data = append(data, f.Z...)

	h := newHeader(f.Geometry, 5, 3)
	return write(path, h, data)
}

// WriteImage2D stores a single frame as a float32 2D image.
func WriteImage2D(path string, img *models.Image2D) error {
	if len(img.Data) != img.Width*img.Height {
		return fmt.Errorf("frame data has %d values for %dx%d pixels", len(img.Data), img.Width, img.Height)
	}
	g := models.Geometry{
		Size:    [3]int{img.Width, img.Height, 1},
		Spacing: [3]float64{img.Spacing[0], img.Spacing[1], 1},
		Origin:  [3]float64{img.Origin[0], img.Origin[1], 0},
		Direction: [9]float64{
			img.Direction[0], img.Direction[1], 0,
			img.Direction[2], img.Direction[3], 0,
			0, 0, 1,
		},
	}
	h := newHeader(g, 2, 1)
	return write(path, h, img.Data)
}

func read(path string) (*image, error) {
	buf, err := readAll(path)
	if err != nil {
		return nil, err
	}

	order, err := byteOrder(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var h header
	if err := binary.Read(bytes.NewReader(buf[:headerSize]), order, &h); err != nil {
		return nil, fmt.Errorf("%s: failed to decode header: %w", path, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%s: unsupported NIfTI magic %q", path, h.Magic[:3])
	}

	size, components, err := h.gridSize()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	bpv, err := bytesPerVoxel(h.Datatype)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	count := size[0] * size[1] * size[2] * components
	offset := int(h.VoxOffset)
	if offset < headerSize {
		offset = dataOffset
	}
	if len(buf) < offset+count*bpv {
		return nil, fmt.Errorf("%s: truncated data, need %d bytes after offset %d, have %d",
			path, count*bpv, offset, len(buf)-offset)
	}

	data := decode(buf[offset:offset+count*bpv], h.Datatype, order, count)
	if h.SclSlope != 0 && (h.SclSlope != 1 || h.SclInter != 0) {
		slope, inter := float64(h.SclSlope), float64(h.SclInter)
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	return &image{geometry: h.geometry(size), components: components, data: data}, nil
}

func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return buf, nil
}

func decode(raw []byte, datatype int16, order binary.ByteOrder, count int) []float64 {
	out := make([]float64, count)
	for i := 0; i < count; i++ {
		switch datatype {
		case dtUint8:
			out[i] = float64(raw[i])
		case dtInt8:
			out[i] = float64(int8(raw[i]))
		case dtInt16:
			out[i] = float64(int16(order.Uint16(raw[2*i:])))
		case dtUint16:
			out[i] = float64(order.Uint16(raw[2*i:]))
		case dtInt32:
			out[i] = float64(int32(order.Uint32(raw[4*i:])))
		case dtUint32:
			out[i] = float64(order.Uint32(raw[4*i:]))
		case dtFloat32:
			out[i] = float64(math.Float32frombits(order.Uint32(raw[4*i:])))
		case dtFloat64:
			out[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
	}
	return out
}

func write(path string, h header, data []float64) error {
	var buf bytes.Buffer
	buf.Grow(dataOffset + 4*len(data))
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	// empty extension flag
	buf.Write([]byte{0, 0, 0, 0})

	word := make([]byte, 4)
	for _, v := range data {
		binary.LittleEndian.PutUint32(word, math.Float32bits(float32(v)))
		buf.Write(word)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return f.Close()
}
