package models

import "math"

// Trilinear samples data laid out on size at the continuous index (x, y, z).
// Points outside the grid return ok == false; points on the outer half-voxel
// border are clamped to the edge voxels.
func Trilinear(data []float64, size [3]int, x, y, z float64) (float64, bool) {
	if !inside(size, x, y, z) {
		return 0, false
	}

	x0, fx := split(x, size[0])
	y0, fy := split(y, size[1])
	z0, fz := split(z, size[2])
	x1 := min(x0+1, size[0]-1)
	y1 := min(y0+1, size[1]-1)
	z1 := min(z0+1, size[2]-1)

	sx := size[0]
	sxy := size[0] * size[1]
	at := func(i, j, k int) float64 { return data[k*sxy+j*sx+i] }

	c00 := at(x0, y0, z0)*(1-fx) + at(x1, y0, z0)*fx
	c10 := at(x0, y1, z0)*(1-fx) + at(x1, y1, z0)*fx
	c01 := at(x0, y0, z1)*(1-fx) + at(x1, y0, z1)*fx
	c11 := at(x0, y1, z1)*(1-fx) + at(x1, y1, z1)*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz, true
}

// Nearest samples the voxel closest to (x, y, z).
func Nearest(data []float64, size [3]int, x, y, z float64) (float64, bool) {
	if !inside(size, x, y, z) {
		return 0, false
	}
	i := clampIndex(int(math.Round(x)), size[0])
	j := clampIndex(int(math.Round(y)), size[1])
	k := clampIndex(int(math.Round(z)), size[2])
	return data[k*size[0]*size[1]+j*size[0]+i], true
}

func inside(size [3]int, x, y, z float64) bool {
	return x >= -0.5 && x <= float64(size[0])-0.5 &&
		y >= -0.5 && y <= float64(size[1])-0.5 &&
		z >= -0.5 && z <= float64(size[2])-0.5
}

func split(c float64, n int) (int, float64) {
	if c <= 0 {
		return 0, 0
	}
	if c >= float64(n-1) {
		return n - 1, 0
	}
	f := math.Floor(c)
	return int(f), c - f
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
