// Package transform resolves the pairwise deformation fields needed to walk a
// phase path and composes them into a single displacement chain.
package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Direction distinguishes the two fields a registration of a phase pair produces.
type Direction int

const (
	// Forward is the warp registered for the pair ("{a}to{b}_0Warp").
	Forward Direction = iota
	// Inverse is the inverse warp of the same registration ("{a}to{b}_0InverseWarp").
	Inverse
)

func (d Direction) String() string {
	if d == Inverse {
		return "InverseWarp"
	}
	return "Warp"
}

// FieldKey identifies one pre-computed deformation field.
type FieldKey struct {
	From int
	To   int
	Dir  Direction
}

// Name returns the file stem used by the registration stage for this key.
func (k FieldKey) Name() string {
	return fmt.Sprintf("%02dto%02d_0%s", k.From, k.To, k.Dir)
}

func (k FieldKey) String() string {
	return k.Name()
}

// MissingFieldError reports a path step with no registered field. It means
// the registration stage did not finish for that pair.
type MissingFieldError struct {
	Key FieldKey
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing deformation field %s", e.Key.Name())
}

// fieldPattern matches registration outputs such as 03to04_0InverseWarp.nii.gz
var fieldPattern = regexp.MustCompile(`^(\d+)to(\d+)_0(Inverse)?Warp\.`)

// FieldTable maps field keys to the handles (file paths) holding them
type FieldTable struct {
	handles map[FieldKey]string
}

// NewFieldTable returns an empty table.
func NewFieldTable() *FieldTable {
	return &FieldTable{handles: make(map[FieldKey]string)}
}

// ScanDir builds a table from the deformation fields found in dir. Files not
// following the registration naming are ignored.
func ScanDir(dir string) (*FieldTable, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list transform directory: %w", err)
	}

	table := NewFieldTable()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, ok := ParseFieldName(entry.Name())
		if !ok {
			continue
		}
		table.Add(key, filepath.Join(dir, entry.Name()))
	}
	return table, nil
}

// ParseFieldName extracts the key from a registration output file name
func ParseFieldName(name string) (FieldKey, bool) {
	m := fieldPattern.FindStringSubmatch(name)
	if m == nil {
		return FieldKey{}, false
	}
	from, err := strconv.Atoi(m[1])
	if err != nil {
		return FieldKey{}, false
	}
	to, err := strconv.Atoi(m[2])
	if err != nil {
		return FieldKey{}, false
	}

	key := FieldKey{From: from, To: to, Dir: Forward}
	if m[3] != "" {
		key.Dir = Inverse
	}
	return key, true
}

// Add registers handle for key, replacing any previous entry.
func (t *FieldTable) Add(key FieldKey, handle string) {
	t.handles[key] = handle
}

// Lookup returns the handle for key.
func (t *FieldTable) Lookup(key FieldKey) (string, error) {
	h, ok := t.handles[key]
	if !ok {
		return "", &MissingFieldError{Key: key}
	}
	return h, nil
}

// Len returns the number of registered fields
func (t *FieldTable) Len() int {
	return len(t.handles)
}

// Keys returns all registered keys in a stable order.
func (t *FieldTable) Keys() []FieldKey {
	keys := make([]FieldKey, 0, len(t.handles))
	for k := range t.handles {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// RingKeys lists the fields a complete registration of an n-phase ring
// provides: forward and inverse warps for every adjacent pair, both orders.
func RingKeys(n int) []FieldKey {
	if n < 2 {
		return nil
	}
	var keys []FieldKey
	for a := 0; a < n; a++ {
		b := (a + 1) % n
		for _, pair := range [][2]int{{a, b}, {b, a}} {
			keys = append(keys,
				FieldKey{From: pair[0], To: pair[1], Dir: Forward},
				FieldKey{From: pair[0], To: pair[1], Dir: Inverse})
		}
	}
	// n == 2 visits each pair twice
	seen := make(map[FieldKey]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

// Missing returns the ring keys for n phases that the table lacks.
func (t *FieldTable) Missing(n int) []FieldKey {
	var missing []FieldKey
	for _, k := range RingKeys(n) {
		if _, ok := t.handles[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func sortKeys(keys []FieldKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Dir < b.Dir
	})
}
