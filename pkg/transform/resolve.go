package transform

import "github.com/josetascon/cinemri-simulation/pkg/phase"

// FieldRef is a resolved field: its key and where to load it from.
type FieldRef struct {
	Key    FieldKey
	Handle string
}

// Resolve lists the fields to compose for path, in composition order.
//
// Steps are walked from the end of the path back to its start. An ascending
// path uses the inverse warp registered for (path[k-1], path[k]); a descending
// path uses the forward warp registered for (path[k], path[k-1]). Paths with
// fewer than two phases resolve to no fields (identity).
func Resolve(path phase.Path, table *FieldTable) ([]FieldRef, error) {
	if len(path) < 2 {
		return nil, nil
	}

	ascending := phase.IsAscending(path)
	refs := make([]FieldRef, 0, len(path)-1)
	for k := len(path) - 1; k > 0; k-- {
		key := FieldKey{From: path[k], To: path[k-1], Dir: Forward}
		if ascending {
			key = FieldKey{From: path[k-1], To: path[k], Dir: Inverse}
		}

		handle, err := table.Lookup(key)
		if err != nil {
			return nil, err
		}
		refs = append(refs, FieldRef{Key: key, Handle: handle})
	}
	return refs, nil
}

// Keys returns the keys of refs in order
func Keys(refs []FieldRef) []FieldKey {
	keys := make([]FieldKey, len(refs))
	for i, r := range refs {
		keys[i] = r.Key
	}
	return keys
}
