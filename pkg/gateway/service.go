package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/api"
	"github.com/NotCoffee418/scale_gateway/pkg/config"
	"github.com/NotCoffee418/scale_gateway/pkg/erp"
	"github.com/NotCoffee418/scale_gateway/pkg/livefeed"
	"github.com/NotCoffee418/scale_gateway/pkg/port_reader"
	"github.com/NotCoffee418/scale_gateway/pkg/protocols"
	"github.com/NotCoffee418/scale_gateway/pkg/weightstate"
	"github.com/NotCoffee418/scale_gateway/pkg/worker"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrAlreadyStarted = errors.New("gateway already started")

// New wires a gateway from a validated config.
func New(cfg config.GatewayConfig, deps Deps) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	factory := deps.PortFactory
	if factory == nil {
		var err error
		factory, err = port_reader.FactoryFor(cfg.Serial.Driver)
		if err != nil {
			return nil, err
		}
	}

	store := weightstate.NewStore(cfg.Worker.PendingCapacity)
	session := port_reader.NewSession(port_reader.OptionsFromConfig(cfg.Serial), factory, clock)
	registry := protocols.Default(clock.Now)
	hub := livefeed.NewHub(store.Snapshot)

	address := erp.ResolveLocalAddress(cfg.ERP.Address)
	log.Info().Msgf("local address reported to erp: %s", address)

	w := worker.New(worker.Options{
		Reader:     session,
		Dispatcher: registry,
		Store:      store,
		Deliverer:  erp.NewClient(cfg.ERP),
		Address:    address,
		Interval:   time.Duration(cfg.Worker.IntervalMs) * time.Millisecond,
		Clock:      clock,
		OnReading:  func(snap weightstate.Snapshot) { hub.Publish(snap) },
	})

	router := api.NewRouter(api.Options{
		Store:     store,
		PortState: func() string { return session.State().String() },
		Feed:      hub,
	})

	return &Service{
		cfg:      cfg,
		listener: deps.Listener,
		store:    store,
		session:  session,
		worker:   w,
		hub:      hub,
		server:   api.NewServer(cfg.Web.ListenAddress, cfg.Web.ListenPort, router),
	}, nil
}

func (s *Service) Store() *weightstate.Store {
	return s.store
}

// Start launches the worker, the live feed and the HTTP server and returns
// immediately.
// A serial port that fails to open is retried by the worker; the HTTP
// server keeps running regardless.
func (s *Service) Start(ctx context.Context) error {
	if s.group != nil {
		return ErrAlreadyStarted
	}

	logPorts()

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = group

	group.Go(func() error {
		if err := s.session.Open(gctx); err != nil && gctx.Err() == nil {
			log.Error().Err(err).Msgf("failed to open serial port %s, will retry", s.session.PortName())
		}
		return s.worker.Run(gctx)
	})

	group.Go(func() error {
		return s.hub.Run(gctx)
	})

	group.Go(func() error {
		if s.listener != nil {
			return s.server.Serve(gctx, s.listener)
		}
		return s.server.Run(gctx)
	})

	return nil
}

// Wait blocks until the service stops and returns the first failure.
func (s *Service) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Stop cancels the loops, waits for them and releases the port and
// websocket clients.
func (s *Service) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.Wait()
	s.hub.Close()
	if cerr := s.session.Close(); cerr != nil {
		log.Debug().Err(cerr).Msg("error closing serial port")
	}
	log.Info().Msg("gateway stopped")
	return err
}

func logPorts() {
	ports, err := port_reader.ListPorts()
	if err != nil {
		log.Warn().Err(err).Msg("failed to list serial ports")
		return
	}
	if len(ports) == 0 {
		log.Warn().Msg("no serial ports found")
		return
	}
	for _, p := range ports {
		log.Info().Msgf("serial port available: %s", p)
	}
}
