package worker

import (
	"context"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/types"
	"github.com/NotCoffee418/scale_gateway/pkg/weightstate"
	"github.com/jonboulle/clockwork"
)

// LineReader yields the lines received from the scale since the last call.
type LineReader interface {
	ReadLines(ctx context.Context) ([]string, error)
}

// Dispatcher turns a batch of lines into at most one reading.
type Dispatcher interface {
	Dispatch(lines []string) (types.Reading, bool)
}

// Deliverer pushes a weight upstream and reports whether it was confirmed.
type Deliverer interface {
	Deliver(ctx context.Context, address string, weight float64) bool
}

type Options struct {
	Reader     LineReader
	Dispatcher Dispatcher
	Store      *weightstate.Store
	Deliverer  Deliverer
	// Local address reported with every delivery.
	Address  string
	Interval time.Duration
	Clock    clockwork.Clock
	// Called after each accepted reading, on the worker goroutine.
	OnReading func(weightstate.Snapshot)
}

// Worker is the only writer of the weight store.
type Worker struct {
	reader     LineReader
	dispatcher Dispatcher
	store      *weightstate.Store
	deliverer  Deliverer
	address    string
	interval   time.Duration
	clock      clockwork.Clock
	onReading  func(weightstate.Snapshot)
}
