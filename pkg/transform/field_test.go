package transform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseFieldName(t *testing.T) {
	tests := []struct {
		name string
		key  FieldKey
		ok   bool
	}{
		{"00to01_0Warp.nii.gz", FieldKey{0, 1, Forward}, true},
		{"09to00_0InverseWarp.nii.gz", FieldKey{9, 0, Inverse}, true},
		{"03to02_0Warp.nii", FieldKey{3, 2, Forward}, true},
		{"03to02_Warped.nii.gz", FieldKey{}, false},
		{"4dct00_to_mr_1Warp.nii.gz", FieldKey{}, false},
		{"readme.txt", FieldKey{}, false},
	}

	for _, tt := range tests {
		key, ok := ParseFieldName(tt.name)
		if ok != tt.ok {
			t.Errorf("ParseFieldName(%q): expected ok=%v, got %v", tt.name, tt.ok, ok)
			continue
		}
		if ok && key != tt.key {
			t.Errorf("ParseFieldName(%q): expected %+v, got %+v", tt.name, tt.key, key)
		}
	}
}

func TestFieldKeyName(t *testing.T) {
	if got := (FieldKey{From: 9, To: 0, Dir: Inverse}).Name(); got != "09to00_0InverseWarp" {
		t.Errorf("Expected 09to00_0InverseWarp, got %s", got)
	}
	if got := (FieldKey{From: 1, To: 2, Dir: Forward}).Name(); got != "01to02_0Warp" {
		t.Errorf("Expected 01to02_0Warp, got %s", got)
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"00to01_0Warp.nii.gz",
		"00to01_0InverseWarp.nii.gz",
		"00to01_Warped.nii.gz",
		"notes.txt",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}

	table, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir failed: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Expected 2 fields, got %d", table.Len())
	}

	h, err := table.Lookup(FieldKey{0, 1, Inverse})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if filepath.Base(h) != "00to01_0InverseWarp.nii.gz" {
		t.Errorf("Unexpected handle %s", h)
	}

	_, err = table.Lookup(FieldKey{1, 0, Forward})
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingFieldError, got %v", err)
	}
	if missing.Key != (FieldKey{1, 0, Forward}) {
		t.Errorf("Unexpected missing key %v", missing.Key)
	}
}

func TestScanDirMissingDirectory(t *testing.T) {
	if _, err := ScanDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestRingKeysAndMissing(t *testing.T) {
	keys := RingKeys(10)
	if len(keys) != 40 {
		t.Fatalf("Expected 40 ring keys for 10 phases, got %d", len(keys))
	}
	if len(RingKeys(2)) != 4 {
		t.Errorf("Expected 4 ring keys for 2 phases, got %d", len(RingKeys(2)))
	}
	if RingKeys(1) != nil {
		t.Error("Expected no ring keys for a single phase")
	}

	table := NewFieldTable()
	for _, k := range keys {
		table.Add(k, k.Name())
	}
	if m := table.Missing(10); len(m) != 0 {
		t.Errorf("Expected complete table, missing %v", m)
	}

	delete(table.handles, FieldKey{9, 0, Inverse})
	m := table.Missing(10)
	if len(m) != 1 || m[0] != (FieldKey{9, 0, Inverse}) {
		t.Errorf("Expected only 09to00_0InverseWarp missing, got %v", m)
	}
}
