package gateway

import (
	"context"
	"net"

	"github.com/NotCoffee418/scale_gateway/pkg/api"
	"github.com/NotCoffee418/scale_gateway/pkg/config"
	"github.com/NotCoffee418/scale_gateway/pkg/livefeed"
	"github.com/NotCoffee418/scale_gateway/pkg/port_reader"
	"github.com/NotCoffee418/scale_gateway/pkg/weightstate"
	"github.com/NotCoffee418/scale_gateway/pkg/worker"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Deps overrides the pieces tests need to control. Zero values use the
// production implementations.
type Deps struct {
	PortFactory port_reader.PortFactory
	Clock       clockwork.Clock
	// Serve on this listener instead of the configured address.
	Listener net.Listener
}

// Service runs the acquisition worker and the HTTP surface for one scale.
type Service struct {
	cfg      config.GatewayConfig
	listener net.Listener
	store    *weightstate.Store
	session  *port_reader.Session
	worker   *worker.Worker
	hub      *livefeed.Hub
	server   *api.Server

	cancel context.CancelFunc
	group  *errgroup.Group
}
