// Package phase models the breathing phases of a 4D acquisition as a ring and
// chooses the traversal path from the reference phase to a target phase.
package phase

import "fmt"

// Path is an ordered walk over phase indices. Consecutive entries differ by
// exactly one step around the ring.
type Path []int

// ShortestPath returns the walk from start to end over a ring of n phases.
//
// The direct walk (no wraparound) is taken when it is not longer than the walk
// across the N-1 <-> 0 seam, so ties favor the direct walk. The returned path
// always has min(direct, wrap)+1 entries and starts at start.
func ShortestPath(n, start, end int) (Path, error) {
	if n < 1 {
		return nil, fmt.Errorf("phase count must be positive, got %d", n)
	}
	if start < 0 || start >= n {
		return nil, fmt.Errorf("start phase %d outside [0,%d)", start, n)
	}
	if end < 0 || end >= n {
		return nil, fmt.Errorf("end phase %d outside [0,%d)", end, n)
	}

	direct := start - end
	if direct < 0 {
		direct = -direct
	}
	wrap := n - direct

	path := make(Path, 0, min(direct, wrap)+1)
	if direct <= wrap {
		step := 1
		if end < start {
			step = -1
		}
		for p := start; p != end; p += step {
			path = append(path, p)
		}
		return append(path, end), nil
	}

	// Cross the seam: walk to the nearer ring boundary, then continue from the
	// opposite boundary towards end.
	if start > end {
		for p := start; p < n; p++ {
			path = append(path, p)
		}
		for p := 0; p <= end; p++ {
			path = append(path, p)
		}
		return path, nil
	}
	for p := start; p >= 0; p-- {
		path = append(path, p)
	}
	for p := n - 1; p >= end; p-- {
		path = append(path, p)
	}
	return path, nil
}

// Steps returns the number of transitions in the path
func (p Path) Steps() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Last returns the final phase of the path.
func (p Path) Last() int {
	return p[len(p)-1]
}
