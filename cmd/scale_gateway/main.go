// Scale gateway reads weights from a serial scale, pushes them to the ERP and
// serves the latest reading over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/scale_gateway/pkg/config"
	"github.com/NotCoffee418/scale_gateway/pkg/gateway"
	"github.com/NotCoffee418/scale_gateway/pkg/logging"
	"github.com/NotCoffee418/scale_gateway/pkg/pathing"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(config.GatewayConfigFile), "path to the gateway config file")
	flag.Parse()

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directories")
	}

	// Missing ERP URL or credentials stop us here, before the worker exists.
	cfg, err := config.LoadGatewayConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msgf("failed to load config %s", *configPath)
	}

	closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}

	log.Info().Msgf("scale gateway starting, config %s", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := gateway.New(*cfg, gateway.Deps{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway")
	}
	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start gateway")
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- svc.Wait() }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-waitErr:
		if err != nil {
			log.Error().Err(err).Msg("gateway failed")
		}
	}

	err = svc.Stop()
	if err != nil {
		log.Error().Err(err).Msg("gateway stopped with error")
	}
	stop()
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}
