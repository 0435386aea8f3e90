package protocols

import (
	"math"
	"strconv"
	"strings"
)

// parseNumber is locale invariant: '.' is the only decimal separator and a
// leading sign is accepted. Non-finite values are rejected.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
