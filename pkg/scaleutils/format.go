package scaleutils

import (
	"strconv"
	"time"
)

// Layout used for measurement timestamps on the HTTP surface. Local time, no zone.
const TimestampLayout = "2006-01-02T15:04:05"

// Two decimals, always '.' as separator.
// strconv ignores the host locale so this is safe on any machine.
func FormatWeight(kg float64) string {
	return strconv.FormatFloat(kg, 'f', 2, 64)
}

// Nil when nothing was measured yet, rendered as JSON null.
func FormatTimestamp(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.Local().Format(TimestampLayout)
	return &s
}

// Reverse of FormatTimestamp, used by the monitor when reading /status.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}

// Reverse of FormatWeight.
func ParseWeight(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
