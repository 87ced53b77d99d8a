package aggregate

import (
	"math"
	"slices"
)

// Sum adds values in a way that does not depend on their order.
// Values are sorted first and then accumulated with Neumaier compensation,
// so every permutation of the same multiset yields the same bits.
func Sum(values []float64) float64 {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return values[0]
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum, comp float64
	for _, v := range sorted {
		t := sum + v
		if math.IsInf(t, 0) {
			// compensation on an infinite partial sum yields NaN
			return t
		}
		if math.Abs(sum) >= math.Abs(v) {
			comp += (sum - t) + v
		} else {
			comp += (v - t) + sum
		}
		sum = t
	}
	return sum + comp
}
