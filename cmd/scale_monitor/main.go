// Scale monitor keeps a registry of scale gateways, polls their /status and
// serves the registry to the dashboard.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/api"
	"github.com/NotCoffee418/scale_gateway/pkg/config"
	"github.com/NotCoffee418/scale_gateway/pkg/logging"
	"github.com/NotCoffee418/scale_gateway/pkg/monitor"
	"github.com/NotCoffee418/scale_gateway/pkg/pathing"
	"github.com/NotCoffee418/scale_gateway/pkg/scaledb"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(config.MonitorConfigFile), "path to the monitor config file")
	flag.Parse()

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directories")
	}

	cfg, err := config.LoadMonitorConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msgf("failed to load config %s", *configPath)
	}

	closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}

	db, err := scaledb.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open scale database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	timeout := time.Duration(cfg.RequestTimeoutS) * time.Second

	var ping monitor.PingFunc
	if cfg.PingFallback {
		ping = monitor.NewPinger(cfg.PingPrivileged, timeout)
	}

	poller := monitor.NewPoller(monitor.PollerOptions{
		Registry:       db,
		Interval:       time.Duration(cfg.PollIntervalS) * time.Second,
		MaxConcurrency: cfg.MaxConcurrency,
		RequestTimeout: timeout,
		StatusPort:     cfg.ScaleStatusPort,
		Ping:           ping,
		Clock:          clock,
	})
	server := api.NewServer(cfg.ListenAddress, cfg.ListenPort, monitor.NewRouter(db, clock))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	err = g.Wait()
	if err != nil {
		log.Error().Err(err).Msg("scale monitor failed")
	} else {
		log.Info().Msg("scale monitor stopped")
	}

	stop()
	_ = db.Close()
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}
