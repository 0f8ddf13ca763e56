package models

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Geometry describes the voxel grid of a volume in physical (LPS, mm) space.
// Direction is stored row-major; column j is the physical direction of index axis j.
type Geometry struct {
	Size      [3]int
	Spacing   [3]float64
	Origin    [3]float64
	Direction [9]float64
}

// IdentityDirection is the axis-aligned direction matrix.
var IdentityDirection = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// NewGeometry returns an axis-aligned geometry with the given size and spacing
// and the origin at zero.
func NewGeometry(size [3]int, spacing [3]float64) Geometry {
	return Geometry{Size: size, Spacing: spacing, Direction: IdentityDirection}
}

// NumVoxels returns the number of voxels in the grid
func (g Geometry) NumVoxels() int {
	return g.Size[0] * g.Size[1] * g.Size[2]
}

// Index returns the linear offset of voxel (x, y, z), x varying fastest.
func (g Geometry) Index(x, y, z int) int {
	return z*g.Size[0]*g.Size[1] + y*g.Size[0] + x
}

// Mapper converts between continuous voxel indices and physical points.
// The matrices are computed once so per-voxel conversions stay cheap.
type Mapper struct {
	origin  r3.Vec
	toPhys  [9]float64 // Direction * diag(Spacing)
	toIndex [9]float64 // inverse of toPhys
}

// Mapper builds the index/physical conversion for g. It fails when the
// direction matrix scaled by the spacing is singular.
func (g Geometry) Mapper() (*Mapper, error) {
	m := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, g.Direction[r*3+c]*g.Spacing[c])
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("singular voxel-to-physical matrix: %w", err)
	}

	mp := &Mapper{origin: r3.Vec{X: g.Origin[0], Y: g.Origin[1], Z: g.Origin[2]}}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			mp.toPhys[r*3+c] = m.At(r, c)
			mp.toIndex[r*3+c] = inv.At(r, c)
		}
	}
	return mp, nil
}

// Physical maps a continuous index to a physical point.
func (mp *Mapper) Physical(i, j, k float64) r3.Vec {
	a := mp.toPhys
	return r3.Add(mp.origin, r3.Vec{
		X: a[0]*i + a[1]*j + a[2]*k,
		Y: a[3]*i + a[4]*j + a[5]*k,
		Z: a[6]*i + a[7]*j + a[8]*k,
	})
}

// ContinuousIndex maps a physical point to a continuous index.
func (mp *Mapper) ContinuousIndex(p r3.Vec) (float64, float64, float64) {
	d := r3.Sub(p, mp.origin)
	a := mp.toIndex
	return a[0]*d.X + a[1]*d.Y + a[2]*d.Z,
		a[3]*d.X + a[4]*d.Y + a[5]*d.Z,
		a[6]*d.X + a[7]*d.Y + a[8]*d.Z
}

// Volume is a scalar 3D image stored as a 1D array, x varying fastest
type Volume struct {
	Geometry
	Data []float64
}

// NewVolume allocates a zero-filled volume on g.
func NewVolume(g Geometry) *Volume {
	return &Volume{Geometry: g, Data: make([]float64, g.NumVoxels())}
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	out := &Volume{Geometry: v.Geometry, Data: make([]float64, len(v.Data))}
	copy(out.Data, v.Data)
	return out
}

// Image2D is a single slice reduced from a volume for one camera view.
type Image2D struct {
	Data      []float64
	Width     int
	Height    int
	Spacing   [2]float64
	Origin    [2]float64
	Direction [4]float64
}

// DisplacementField holds one displacement vector per voxel, one array per
// physical component, in mm.
type DisplacementField struct {
	Geometry
	X, Y, Z []float64
}

// NewDisplacementField allocates a zero field on g.
func NewDisplacementField(g Geometry) *DisplacementField {
	n := g.NumVoxels()
	return &DisplacementField{
		Geometry: g,
		X:        make([]float64, n),
		Y:        make([]float64, n),
		Z:        make([]float64, n),
	}
}

// Scale multiplies every displacement vector by s in place.
func (f *DisplacementField) Scale(s float64) {
	if s == 1.0 {
		return
	}
	floats.Scale(s, f.X)
	floats.Scale(s, f.Y)
	floats.Scale(s, f.Z)
}

// MaxMagnitude returns the length of the largest displacement vector
func (f *DisplacementField) MaxMagnitude() float64 {
	max := 0.0
	for i := range f.X {
		n := r3.Norm(r3.Vec{X: f.X[i], Y: f.Y[i], Z: f.Z[i]})
		if n > max {
			max = n
		}
	}
	return max
}
