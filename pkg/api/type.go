package api

import (
	"net/http"

	"github.com/NotCoffee418/scale_gateway/pkg/weightstate"
)

type BalanzaResponse struct {
	Peso string `json:"peso"`
}

type StatusResponse struct {
	Peso      string  `json:"peso"`
	Fecha     *string `json:"fecha"`
	Protocolo *string `json:"protocolo"`
	Pendiente string  `json:"pendiente"`
	Puerto    string  `json:"puerto"`
}

// Options wires the gateway state into the router.
type Options struct {
	Store *weightstate.Store
	// Reports the serial session state. Nil reports "unknown".
	PortState func() string
	// Served at /ws when set.
	Feed http.Handler
}

// Server is an http.Server that stops when its context ends.
type Server struct {
	srv *http.Server
}
