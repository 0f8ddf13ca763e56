package nifti

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/josetascon/cinemri-simulation/internal/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func testGeometry() models.Geometry {
	g := models.NewGeometry([3]int{4, 3, 2}, [3]float64{1.5, 2, 3})
	g.Origin = [3]float64{-10, 20.5, 7}
	return g
}

func checkGeometry(t *testing.T, want, got models.Geometry) {
	t.Helper()
	if got.Size != want.Size {
		t.Fatalf("Expected size %v, got %v", want.Size, got.Size)
	}
	for i := 0; i < 3; i++ {
		if !approx(got.Spacing[i], want.Spacing[i]) {
			t.Errorf("Spacing[%d]: expected %f, got %f", i, want.Spacing[i], got.Spacing[i])
		}
		if !approx(got.Origin[i], want.Origin[i]) {
			t.Errorf("Origin[%d]: expected %f, got %f", i, want.Origin[i], got.Origin[i])
		}
	}
	for i := 0; i < 9; i++ {
		if !approx(got.Direction[i], want.Direction[i]) {
			t.Errorf("Direction[%d]: expected %f, got %f", i, want.Direction[i], got.Direction[i])
		}
	}
}

func TestVolumeRoundTrip(t *testing.T) {
	for _, name := range []string{"vol.nii", "vol.nii.gz"} {
		t.Run(name, func(t *testing.T) {
			v := models.NewVolume(testGeometry())
			for i := range v.Data {
				v.Data[i] = float64(i) * 0.5
			}

			path := filepath.Join(t.TempDir(), name)
			if err := WriteVolume(path, v); err != nil {
				t.Fatalf("WriteVolume failed: %v", err)
			}
			got, err := ReadVolume(path)
			if err != nil {
				t.Fatalf("ReadVolume failed: %v", err)
			}

			checkGeometry(t, v.Geometry, got.Geometry)
			for i := range v.Data {
				if !approx(got.Data[i], v.Data[i]) {
					t.Fatalf("Data[%d]: expected %f, got %f", i, v.Data[i], got.Data[i])
				}
			}
		})
	}
}

func TestFieldRoundTrip(t *testing.T) {
	f := models.NewDisplacementField(testGeometry())
	for i := range f.X {
		f.X[i] = float64(i)
		f.Y[i] = -float64(i)
		f.Z[i] = 0.25
	}

	path := filepath.Join(t.TempDir(), "00to01_0Warp.nii.gz")
	if err := WriteField(path, f); err != nil {
		t.Fatalf("WriteField failed: %v", err)
	}
	got, err := ReadField(path)
	if err != nil {
		t.Fatalf("ReadField failed: %v", err)
	}

	checkGeometry(t, f.Geometry, got.Geometry)
	for i := range f.X {
		if !approx(got.X[i], f.X[i]) || !approx(got.Y[i], f.Y[i]) || !approx(got.Z[i], f.Z[i]) {
			t.Fatalf("Vector %d: expected (%f,%f,%f), got (%f,%f,%f)",
				i, f.X[i], f.Y[i], f.Z[i], got.X[i], got.Y[i], got.Z[i])
		}
	}

	// scaling one component must not leak into the others
	got.Scale(2)
	if !approx(got.Z[0], 0.5) || !approx(got.X[1], 2) {
		t.Errorf("Unexpected values after scaling: x1=%f z0=%f", got.X[1], got.Z[0])
	}

	if _, err := ReadVolume(path); err == nil {
		t.Error("Expected ReadVolume to reject a vector image")
	}
}

func TestImage2DRoundTrip(t *testing.T) {
	img := &models.Image2D{
		Data:      []float64{1, 2, 3, 4, 5, 6},
		Width:     3,
		Height:    2,
		Spacing:   [2]float64{0.8, 1.2},
		Direction: [4]float64{-1, 0, 0, -1},
	}
	path := filepath.Join(t.TempDir(), "image_0000.nii")
	if err := WriteImage2D(path, img); err != nil {
		t.Fatalf("WriteImage2D failed: %v", err)
	}

	got, err := ReadVolume(path)
	if err != nil {
		t.Fatalf("ReadVolume failed: %v", err)
	}
	if got.Size != [3]int{3, 2, 1} {
		t.Fatalf("Expected size 3x2x1, got %v", got.Size)
	}
	if !approx(got.Direction[0], -1) || !approx(got.Direction[4], -1) {
		t.Errorf("Expected flipped in-plane direction, got %v", got.Direction)
	}
	for i, v := range img.Data {
		if !approx(got.Data[i], v) {
			t.Errorf("Data[%d]: expected %f, got %f", i, v, got.Data[i])
		}
	}
}

// TestReadInt16Scaled writes a header by hand to cover integer data and the
// scl_slope/scl_inter rescale
func TestReadInt16Scaled(t *testing.T) {
	h := newHeader(models.NewGeometry([3]int{2, 2, 1}, [3]float64{1, 1, 1}), 3, 1)
	h.Datatype = dtInt16
	h.Bitpix = 16
	h.SclSlope = 2
	h.SclInter = 1

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		t.Fatalf("Failed to encode header: %v", err)
	}
	buf.Write([]byte{0, 0, 0, 0})
	for _, v := range []int16{-3, 0, 5, 100} {
		binary.Write(&buf, binary.LittleEndian, v)
	}

	path := filepath.Join(t.TempDir(), "int16.nii")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	v, err := ReadVolume(path)
	if err != nil {
		t.Fatalf("ReadVolume failed: %v", err)
	}
	want := []float64{-5, 1, 11, 201}
	for i := range want {
		if v.Data[i] != want[i] {
			t.Errorf("Data[%d]: expected %f, got %f", i, want[i], v.Data[i])
		}
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.nii")
	os.WriteFile(short, []byte("hello"), 0644)
	if _, err := ReadVolume(short); err == nil {
		t.Error("Expected error for short file")
	}

	junk := filepath.Join(dir, "junk.nii")
	os.WriteFile(junk, make([]byte, 400), 0644)
	if _, err := ReadVolume(junk); err == nil {
		t.Error("Expected error for bad header size")
	}

	if _, err := ReadVolume(filepath.Join(dir, "missing.nii")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestQuaternionIdentity(t *testing.T) {
	m := quaternionToMatrix(0, 0, 0)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := 0.0
			if r == c {
				want = 1
			}
			if !approx(m[r][c], want) {
				t.Errorf("m[%d][%d]: expected %f, got %f", r, c, want, m[r][c])
			}
		}
	}
}
