package worker

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 3000 * time.Millisecond

func New(opts Options) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Worker{
		reader:     opts.Reader,
		dispatcher: opts.Dispatcher,
		store:      opts.Store,
		deliverer:  opts.Deliverer,
		address:    opts.Address,
		interval:   opts.Interval,
		clock:      opts.Clock,
		onReading:  opts.OnReading,
	}
}

// Run ticks until ctx is cancelled. It always returns nil.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Msgf("acquisition worker started, interval %s, address %s", w.interval, w.address)

	for {
		w.Tick(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("acquisition worker stopped")
			return nil
		case <-w.clock.After(w.interval):
		}
	}
}

// Tick runs one read and delivery cycle. A panic inside is logged and
// swallowed so the next tick still runs.
func (w *Worker) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("panic in acquisition cycle: %v\n%s", r, debug.Stack())
		}
	}()

	w.acquire(ctx)

	if ctx.Err() != nil {
		return
	}
	w.deliver(ctx)
}

func (w *Worker) acquire(ctx context.Context) {
	lines, err := w.reader.ReadLines(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error reading scale")
		return
	}
	if len(lines) == 0 {
		return
	}

	reading, ok := w.dispatcher.Dispatch(lines)
	if !ok {
		return
	}

	w.store.RecordReading(reading)
	if w.onReading != nil {
		w.onReading(w.store.Snapshot())
	}
}

func (w *Worker) deliver(ctx context.Context) {
	pending := w.store.PeekPending()
	if pending <= 0 {
		return
	}

	log.Info().Msgf("pending weight %.2f, sending to erp", pending)
	if w.deliverer.Deliver(ctx, w.address, pending) {
		w.store.ConfirmDelivered()
		log.Info().Msgf("weight %.2f confirmed, pending cleared", pending)
		return
	}
	log.Warn().Msgf("weight %.2f not confirmed, retrying next cycle", pending)
}
