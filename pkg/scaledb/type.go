package scaledb

import (
	"errors"
	"time"
)

const (
	EstadoOK    = "ok"
	EstadoError = "error"
)

// Used when a scale is registered without thresholds, in seconds.
const (
	DefaultTiempoWarning = 60
	DefaultTiempoDanger  = 300
)

var (
	ErrNotFound    = errors.New("scale not found")
	ErrDuplicateIP = errors.New("a scale with this ip already exists")
	ErrInvalid     = errors.New("ip and nombre are required")
)

// Scale is one registered gateway. Times are UTC.
type Scale struct {
	ID             string     `json:"id" db:"id"`
	IP             string     `json:"ip" db:"ip"`
	Nombre         string     `json:"nombre" db:"nombre"`
	Estado         string     `json:"estado" db:"estado"`
	UltimaConexion *time.Time `json:"ultimaConexion" db:"ultima_conexion"`
	UltimoPeso     *float64   `json:"ultimoPeso" db:"ultimo_peso"`
	UltimaMedicion *time.Time `json:"ultimaMedicion" db:"ultima_medicion"`
	TiempoWarning  int        `json:"tiempoWarning" db:"tiempo_warning"`
	TiempoDanger   int        `json:"tiempoDanger" db:"tiempo_danger"`
	// Nil until the first failed poll with ping fallback enabled.
	Alcanzable *bool `json:"alcanzable" db:"alcanzable"`
}

// ScaleInput is what clients send to create or update a scale.
type ScaleInput struct {
	IP            string `json:"ip"`
	Nombre        string `json:"nombre"`
	TiempoWarning int    `json:"tiempoWarning"`
	TiempoDanger  int    `json:"tiempoDanger"`
}

// PollResult is the outcome of one status probe.
type PollResult struct {
	OK bool
	At time.Time
	// Only set when OK.
	Weight     *float64
	MeasuredAt *time.Time
	Reachable  *bool
}
