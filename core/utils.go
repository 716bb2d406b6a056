package core

import "math"

// AddMetric adds two costs. ok is false if the sum does not fit a cost.
func AddMetric(a, b uint32) (sum uint32, ok bool) {
	s := uint64(a) + uint64(b)
	if s > math.MaxUint32 {
		return 0, false
	}
	return uint32(s), true
}
