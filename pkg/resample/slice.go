package resample

import (
	"fmt"
	"strings"

	"github.com/josetascon/cinemri-simulation/internal/models"
)

// View is the camera orientation of the synthesized cine sequence.
type View int

const (
	// Axial is the xy plane at a fixed z.
	Axial View = iota
	// Coronal is the xz plane at a fixed y.
	Coronal
	// Sagittal is the yz plane at a fixed x.
	Sagittal
)

// ParseView converts a configuration value into a View.
func ParseView(s string) (View, error) {
	switch strings.ToLower(s) {
	case "axial":
		return Axial, nil
	case "coronal":
		return Coronal, nil
	case "sagittal":
		return Sagittal, nil
	}
	return Axial, fmt.Errorf("invalid view: %s (must be axial, coronal or sagittal)", s)
}

func (v View) String() string {
	switch v {
	case Coronal:
		return "coronal"
	case Sagittal:
		return "sagittal"
	}
	return "axial"
}

// FrameDirection is the in-plane direction stamped on every written frame.
var FrameDirection = [4]float64{-1, 0, 0, -1}

// ExtractSlice takes the plane at index along the axis normal to view.
func ExtractSlice(vol *models.Volume, index int, view View) (*models.Image2D, error) {
	if index < 0 {
		return nil, fmt.Errorf("slice index must be non-negative")
	}

	nx, ny, nz := vol.Size[0], vol.Size[1], vol.Size[2]
	img := &models.Image2D{Direction: FrameDirection}

	switch view {
	case Axial:
		if index >= nz {
			return nil, fmt.Errorf("slice %d exceeds depth %d", index, nz)
		}
		img.Width, img.Height = nx, ny
		img.Spacing = [2]float64{vol.Spacing[0], vol.Spacing[1]}
		img.Data = make([]float64, nx*ny)
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				img.Data[y*nx+x] = vol.Data[vol.Index(x, y, index)]
			}
		}

	case Coronal:
		if index >= ny {
			return nil, fmt.Errorf("slice %d exceeds height %d", index, ny)
		}
		img.Width, img.Height = nx, nz
		img.Spacing = [2]float64{vol.Spacing[0], vol.Spacing[2]}
		img.Data = make([]float64, nx*nz)
		for z := 0; z < nz; z++ {
			for x := 0; x < nx; x++ {
				img.Data[z*nx+x] = vol.Data[vol.Index(x, index, z)]
			}
		}

	case Sagittal:
		if index >= nx {
			return nil, fmt.Errorf("slice %d exceeds width %d", index, nx)
		}
		img.Width, img.Height = ny, nz
		img.Spacing = [2]float64{vol.Spacing[1], vol.Spacing[2]}
		img.Data = make([]float64, ny*nz)
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				img.Data[z*ny+y] = vol.Data[vol.Index(index, y, z)]
			}
		}

	default:
		return nil, fmt.Errorf("invalid view %d", view)
	}

	return img, nil
}
