package monitor

import (
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/scaledb"
)

// Staleness classifies how old the last measurement of s is at now.
func Staleness(s scaledb.Scale, now time.Time) string {
	if s.UltimaMedicion == nil {
		return StalenessUnknown
	}

	age := now.Sub(*s.UltimaMedicion)
	switch {
	case s.TiempoDanger > 0 && age > time.Duration(s.TiempoDanger)*time.Second:
		return StalenessDanger
	case s.TiempoWarning > 0 && age > time.Duration(s.TiempoWarning)*time.Second:
		return StalenessWarning
	default:
		return StalenessOK
	}
}

func viewOf(s scaledb.Scale, now time.Time) ScaleView {
	return ScaleView{Scale: s, Staleness: Staleness(s, now)}
}
