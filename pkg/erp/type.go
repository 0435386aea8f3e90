package erp

import (
	"errors"
	"net/http"
)

var (
	// ErrDeliveryRejected is returned for a non-2xx response.
	ErrDeliveryRejected = errors.New("erp rejected delivery")
	// ErrNotConfirmed is returned for a 2xx response without a confirmation token.
	ErrNotConfirmed  = errors.New("erp response not confirmed")
	ErrInvalidWeight = errors.New("weight must be positive")
)

// payload is the body the ERP expects.
type payload struct {
	Address string  `json:"ADDRESS"`
	Weight  float64 `json:"WEIGHT"`
}

type Client struct {
	url      string
	username string
	password string
	tokens   []string
	http     *http.Client
}
