package types

import "time"

// Reading is one weight extracted from a scale line. Immutable once created.
type Reading struct {
	Weight         float64   `json:"weight"`
	ObservedAt     time.Time `json:"observed_at"`
	SourceProtocol string    `json:"source_protocol"`
}

// DeliveryAttempt describes a single push to the ERP. Logged, never stored.
type DeliveryAttempt struct {
	Address    string  `json:"address"`
	Weight     float64 `json:"weight"`
	HTTPStatus int     `json:"http_status"`
	Confirmed  bool    `json:"confirmed"`
}
