// Package nifti reads and writes single-file NIfTI-1 images (.nii, .nii.gz):
// scalar volumes, 2D frames and 3-component displacement fields as produced by
// the registration stage.
//
// Geometry is converted to the LPS physical convention on read and back to
// RAS on write, so origins and directions match those of the registration
// toolkit that wrote the deformation fields.
package nifti

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/josetascon/cinemri-simulation/internal/models"
)

const (
	headerSize = 348
	dataOffset = 352

	intentVector = 1007
)

// NIfTI-1 datatype codes
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
)

var magic = [4]byte{'n', '+', '1', 0}

// header mirrors the 348 byte NIfTI-1 header layout field by field.
type header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

func bytesPerVoxel(datatype int16) (int, error) {
	switch datatype {
	case dtUint8, dtInt8:
		return 1, nil
	case dtInt16, dtUint16:
		return 2, nil
	case dtInt32, dtUint32, dtFloat32:
		return 4, nil
	case dtFloat64:
		return 8, nil
	}
	return 0, fmt.Errorf("unsupported NIfTI datatype %d", datatype)
}

// gridSize returns the spatial size and the number of components per voxel
func (h *header) gridSize() ([3]int, int, error) {
	ndim := int(h.Dim[0])
	if ndim < 1 || ndim > 7 {
		return [3]int{}, 0, fmt.Errorf("invalid dimension count %d", ndim)
	}

	size := [3]int{1, 1, 1}
	for i := 0; i < 3 && i < ndim; i++ {
		if h.Dim[i+1] < 1 {
			return [3]int{}, 0, fmt.Errorf("invalid size %d along axis %d", h.Dim[i+1], i)
		}
		size[i] = int(h.Dim[i+1])
	}

	if ndim >= 4 && h.Dim[4] > 1 {
		return [3]int{}, 0, fmt.Errorf("time series with %d points are not supported", h.Dim[4])
	}
	components := 1
	if ndim >= 5 && h.Dim[5] > 1 {
		components = int(h.Dim[5])
	}
	return size, components, nil
}

// geometry builds the LPS voxel grid description from the header
func (h *header) geometry(size [3]int) models.Geometry {
	g := models.Geometry{Size: size}
	for i := 0; i < 3; i++ {
		s := math.Abs(float64(h.Pixdim[i+1]))
		if s == 0 {
			s = 1
		}
		g.Spacing[i] = s
	}

	var ras [3][4]float64
	switch {
	case h.SformCode > 0:
		for c := 0; c < 4; c++ {
			ras[0][c] = float64(h.SrowX[c])
			ras[1][c] = float64(h.SrowY[c])
			ras[2][c] = float64(h.SrowZ[c])
		}
	case h.QformCode > 0:
		rot := quaternionToMatrix(float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD))
		qfac := 1.0
		if h.Pixdim[0] < 0 {
			qfac = -1.0
		}
		for r := 0; r < 3; r++ {
			ras[r][0] = rot[r][0] * g.Spacing[0]
			ras[r][1] = rot[r][1] * g.Spacing[1]
			ras[r][2] = rot[r][2] * g.Spacing[2] * qfac
		}
		ras[0][3] = float64(h.QoffsetX)
		ras[1][3] = float64(h.QoffsetY)
		ras[2][3] = float64(h.QoffsetZ)
	default:
		for i := 0; i < 3; i++ {
			ras[i][i] = g.Spacing[i]
		}
	}

	// RAS -> LPS flips the first two physical axes
	ras[0] = negate(ras[0])
	ras[1] = negate(ras[1])

	for r := 0; r < 3; r++ {
		g.Origin[r] = ras[r][3]
		for c := 0; c < 3; c++ {
			g.Direction[r*3+c] = ras[r][c] / g.Spacing[c]
		}
	}
	return g
}

func negate(row [4]float64) [4]float64 {
	for i := range row {
		row[i] = -row[i]
	}
	return row
}

func quaternionToMatrix(b, c, d float64) [3][3]float64 {
	a := 1.0 - (b*b + c*c + d*d)
	if a < 1e-7 {
		// 180 degree rotation: renormalize b, c, d
		n := 1.0 / math.Sqrt(b*b+c*c+d*d)
		b, c, d = b*n, c*n, d*n
		a = 0
	} else {
		a = math.Sqrt(a)
	}
	return [3][3]float64{
		{a*a + b*b - c*c - d*d, 2 * (b*c - a*d), 2 * (b*d + a*c)},
		{2 * (b*c + a*d), a*a + c*c - b*b - d*d, 2 * (c*d - a*b)},
		{2 * (b*d - a*c), 2 * (c*d + a*b), a*a + d*d - c*c - b*b},
	}
}

// newHeader prepares a float32 header for g with the given component count
func newHeader(g models.Geometry, ndim, components int) header {
	h := header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Datatype:  dtFloat32,
		Bitpix:    32,
		VoxOffset: dataOffset,
		SclSlope:  1,
		XYZTUnits: 2, // mm
		SformCode: 1,
		Magic:     magic,
	}
	h.Dim[0] = int16(ndim)
	for i := 0; i < 3; i++ {
		h.Dim[i+1] = int16(g.Size[i])
	}
	for i := 4; i < 8; i++ {
		h.Dim[i] = 1
	}
	if components > 1 {
		h.Dim[0] = 5
		h.Dim[5] = int16(components)
		h.IntentCode = intentVector
	}

	h.Pixdim[0] = 1
	for i := 0; i < 3; i++ {
		h.Pixdim[i+1] = float32(g.Spacing[i])
	}

	// LPS -> RAS
	sign := [3]float64{-1, -1, 1}
	rows := [3]*[4]float32{&h.SrowX, &h.SrowY, &h.SrowZ}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rows[r][c] = float32(sign[r] * g.Direction[r*3+c] * g.Spacing[c])
		}
		rows[r][3] = float32(sign[r] * g.Origin[r])
	}
	return h
}

// byteOrder detects the header endianness from sizeof_hdr
func byteOrder(buf []byte) (binary.ByteOrder, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("file too short for a NIfTI header (%d bytes)", len(buf))
	}
	if binary.LittleEndian.Uint32(buf[:4]) == headerSize {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint32(buf[:4]) == headerSize {
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("not a NIfTI-1 file: bad header size")
}
