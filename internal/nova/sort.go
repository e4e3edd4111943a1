package nova

import "sort"

// sortParams orders ids by their position in the parameter table.
func sortParams(ids []Param) {
	sort.Slice(ids, func(a, b int) bool {
		ia, oka := paramIndex[ids[a]]
		ib, okb := paramIndex[ids[b]]
		if oka != okb {
			return oka
		}
		if !oka {
			return ids[a] < ids[b]
		}
		return ia < ib
	})
}
