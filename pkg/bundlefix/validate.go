package bundlefix

import "sort"

// FindCollisions groups assignments by identifier and returns every
// identifier held by more than one target or bundle, with the offending
// paths. Pure and read-only; sort-then-scan.
func FindCollisions(assignments []Assignment) []Collision {
	sorted := make([]Assignment, len(assignments))
	copy(sorted, assignments)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Identifier != sorted[j].Identifier {
			return sorted[i].Identifier < sorted[j].Identifier
		}
		return claimant(sorted[i]) < claimant(sorted[j])
	})

	var collisions []Collision
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Identifier == sorted[i].Identifier {
			j++
		}
		if j-i > 1 {
			c := Collision{Identifier: sorted[i].Identifier}
			for _, a := range sorted[i:j] {
				c.Paths = append(c.Paths, claimant(a))
			}
			collisions = append(collisions, c)
		}
		i = j
	}
	return collisions
}

// claimant names the holder of an identifier: the bundle path in the
// archive flow, the target name in the project flow.
func claimant(a Assignment) string {
	if a.Path != "" {
		return a.Path
	}
	return a.Name
}
