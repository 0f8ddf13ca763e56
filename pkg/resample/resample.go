// Package resample warps volumes through a point transform and reduces them
// to the 2D camera view written for every frame.
package resample

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/josetascon/cinemri-simulation/internal/models"
)

// PointTransform maps an output physical point to the input point to sample.
type PointTransform interface {
	TransformPoint(p r3.Vec) r3.Vec
}

// Interpolator selects how input voxels are sampled at non-grid points.
type Interpolator int

const (
	Linear Interpolator = iota
	NearestNeighbor
)

// ParseInterpolator converts a configuration value into an Interpolator
func ParseInterpolator(s string) (Interpolator, error) {
	switch strings.ToLower(s) {
	case "", "linear":
		return Linear, nil
	case "nearest":
		return NearestNeighbor, nil
	}
	return Linear, fmt.Errorf("unknown interpolator %q (must be linear or nearest)", s)
}

func (i Interpolator) String() string {
	if i == NearestNeighbor {
		return "nearest"
	}
	return "linear"
}

// Resampler warps volumes onto their own grid. Samples falling outside the
// input take DefaultValue.
type Resampler struct {
	Interpolator Interpolator
	DefaultValue float64
	// NumWorkers bounds the goroutines used per volume; 0 means all cores.
	NumWorkers int
}

// NewResampler creates a resampler with the given interpolator and a zero
// background.
func NewResampler(interp Interpolator) *Resampler {
	return &Resampler{Interpolator: interp}
}

// Warp resamples vol through t: every output voxel at physical point p takes
// the input value at t(p). The output shares the geometry of vol.
func (r *Resampler) Warp(vol *models.Volume, t PointTransform) (*models.Volume, error) {
	mp, err := vol.Geometry.Mapper()
	if err != nil {
		return nil, err
	}

	sample := models.Trilinear
	if r.Interpolator == NearestNeighbor {
		sample = models.Nearest
	}

	out := models.NewVolume(vol.Geometry)
	nx, ny, nz := vol.Size[0], vol.Size[1], vol.Size[2]

	workers := r.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > nz {
		workers = nz
	}
	if workers < 1 {
		workers = 1
	}

	// Each worker owns a contiguous range of z planes
	var wg sync.WaitGroup
	planes := (nz + workers - 1) / workers
	for w := 0; w < workers; w++ {
		zStart := w * planes
		zEnd := min(zStart+planes, nz)
		if zStart >= zEnd {
			break
		}

		wg.Add(1)
		go func(zStart, zEnd int) {
			defer wg.Done()
			for z := zStart; z < zEnd; z++ {
				for y := 0; y < ny; y++ {
					for x := 0; x < nx; x++ {
						p := mp.Physical(float64(x), float64(y), float64(z))
						ci, cj, ck := mp.ContinuousIndex(t.TransformPoint(p))
						v, ok := sample(vol.Data, vol.Size, ci, cj, ck)
						if !ok {
							v = r.DefaultValue
						}
						out.Data[vol.Index(x, y, z)] = v
					}
				}
			}
		}(zStart, zEnd)
	}
	wg.Wait()

	return out, nil
}
