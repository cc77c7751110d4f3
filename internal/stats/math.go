package stats

import (
	"math"
	"slices"
)

// Median returns the middle value of values, averaging the two central
// values for even counts. It does not mutate its input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	temp := slices.Clone(values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return temp[n/2]
	}
	return (temp[n/2-1] + temp[n/2]) / 2.0
}

// Percentile uses the nearest-rank method; p is in (0, 100].
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 || p <= 0 {
		return 0
	}
	temp := slices.Clone(values)
	slices.Sort(temp)

	rank := int(math.Ceil(p / 100 * float64(len(temp))))
	rank = min(max(rank, 1), len(temp))
	return temp[rank-1]
}

// Mean is zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Ratio returns part/total as a percentage, zero when total is zero.
func Ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
