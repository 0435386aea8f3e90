package weightstate

import (
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/helpers/syncutil"
	"github.com/NotCoffee418/scale_gateway/pkg/types"
)

// Snapshot is a copy of the store taken under its lock.
type Snapshot struct {
	LastWeight float64
	// Nil until the first reading.
	LastMeasuredAt *time.Time
	PendingWeight  float64
	PendingCount   int
	// Empty until the first reading.
	DetectedProtocol string
}

// Store holds the state of the one scale this process serves.
// Only the acquisition worker writes; readers take snapshots.
//
// With capacity 1 pending is a single register: a reading that arrives before
// the previous one was confirmed replaces it and the older weight is never
// delivered. Larger capacities queue positive readings instead.
type Store struct {
	mu       syncutil.RWMutex
	capacity int
	last     types.Reading
	hasLast  bool
	slot     float64
	queue    []float64
}
