package phase

// IsAscending reports whether the path advances through the phases.
// A single-phase path counts as ascending. Only a literal +1 first step is
// ascending: a first step across the seam such as 9 -> 0 is descending.
func IsAscending(p Path) bool {
	if len(p) <= 1 {
		return true
	}
	return p[1] == p[0]+1
}

// SelectPath picks the traversal from reference towards the fractional
// position bracketed by floorPhase and ceilPhase.
//
// When the floor path ascends the ceil path is used, and when the two
// disagree in direction (the target straddles the seam) the ceil path is
// extended with floorPhase so the walk finishes on the floor side. A
// descending floor path is used as is.
func SelectPath(n, reference, floorPhase, ceilPhase int) (Path, error) {
	floorPath, err := ShortestPath(n, reference, floorPhase)
	if err != nil {
		return nil, err
	}
	ceilPath, err := ShortestPath(n, reference, ceilPhase)
	if err != nil {
		return nil, err
	}

	if !IsAscending(floorPath) {
		return floorPath, nil
	}
	if !IsAscending(ceilPath) {
		return append(ceilPath, floorPhase), nil
	}
	return ceilPath, nil
}
