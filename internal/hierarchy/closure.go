package hierarchy

import "sort"

// UnitTopology captures the space and resource attachments of one
// reservation unit, the only inputs the closure needs.
type UnitTopology struct {
	ID          int64
	SpaceIDs    []int64
	ResourceIDs []int64
}

// BuildClosure computes, for every reservation unit, the full set of
// reservation units that can conflict with it: the unit itself, every unit
// attached to any space in the family of one of its spaces, and every unit
// sharing a directly attached resource. The relation is reflexive by
// construction and symmetric because "shares a family space or a resource"
// is itself symmetric. Related ids are returned sorted so repeated rebuilds
// produce identical tables.
func BuildClosure(forest *Forest, units []UnitTopology) map[int64][]int64 {
	unitsBySpace := make(map[int64][]int64)
	unitsByResource := make(map[int64][]int64)
	for _, unit := range units {
		for _, spaceID := range unit.SpaceIDs {
			unitsBySpace[spaceID] = append(unitsBySpace[spaceID], unit.ID)
		}
		for _, resourceID := range unit.ResourceIDs {
			unitsByResource[resourceID] = append(unitsByResource[resourceID], unit.ID)
		}
	}

	closure := make(map[int64][]int64, len(units))
	for _, unit := range units {
		related := map[int64]struct{}{unit.ID: {}}

		for spaceID := range forest.FamilyOfAll(unit.SpaceIDs) {
			for _, other := range unitsBySpace[spaceID] {
				related[other] = struct{}{}
			}
		}
		for _, resourceID := range unit.ResourceIDs {
			for _, other := range unitsByResource[resourceID] {
				related[other] = struct{}{}
			}
		}

		ids := make([]int64, 0, len(related))
		for id := range related {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		closure[unit.ID] = ids
	}

	return closure
}
