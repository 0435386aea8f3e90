package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/scaledb"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"
)

// Staleness of the last measurement a scale reported.
const (
	StalenessUnknown = "unknown"
	StalenessOK      = "ok"
	StalenessWarning = "warning"
	StalenessDanger  = "danger"
)

// Registry is the storage the monitor needs. Implemented by *scaledb.DB.
type Registry interface {
	List(ctx context.Context) ([]scaledb.Scale, error)
	Get(ctx context.Context, id string) (scaledb.Scale, error)
	Create(ctx context.Context, in scaledb.ScaleInput) (scaledb.Scale, error)
	Update(ctx context.Context, id string, in scaledb.ScaleInput) (scaledb.Scale, error)
	Delete(ctx context.Context, id string) error
	RecordPoll(ctx context.Context, id string, r scaledb.PollResult) error
}

// PingFunc reports whether host answers a ping.
type PingFunc func(ctx context.Context, host string) (bool, error)

// ScaleView is a scale as served to the dashboard.
type ScaleView struct {
	scaledb.Scale
	Staleness string `json:"staleness"`
}

// gatewayStatus is the part of a gateway's /status body the poller reads.
type gatewayStatus struct {
	Peso  string  `json:"peso"`
	Fecha *string `json:"fecha"`
}

type PollerOptions struct {
	Registry       Registry
	Interval       time.Duration
	MaxConcurrency int
	RequestTimeout time.Duration
	// Appended to IPs without a port. 0 keeps the default HTTP port.
	StatusPort int
	// Nil disables the ping fallback.
	Ping  PingFunc
	Clock clockwork.Clock
}

// Poller probes every registered scale on a fixed interval.
type Poller struct {
	registry   Registry
	interval   time.Duration
	sem        *semaphore.Weighted
	client     *http.Client
	statusPort int
	ping       PingFunc
	clock      clockwork.Clock
}
