// Scale tail follows the live feed of one gateway and prints every reading
// as a JSON line. Depends on the gateway being online.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/scale_gateway/pkg/livefeed"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	host := flag.String("host", os.Getenv("SCALE_GATEWAY_HOST"), "gateway host[:port]")
	retries := flag.Int("retries", 10, "consecutive failed connects before giving up, 0 for never")
	flag.Parse()

	if *host == "" {
		*host = "localhost:80"
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := livefeed.Listen(ctx, livefeed.ListenOptions{
		Host:       *host,
		MaxRetries: *retries,
	}, printMessage)
	if err != nil {
		log.Error().Err(err).Msg("live feed stopped")
		stop()
		os.Exit(1)
	}
}

func printMessage(msg livefeed.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode reading")
		return
	}
	fmt.Println(string(data))
}
