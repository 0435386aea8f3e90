package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/scaledb"
	"github.com/NotCoffee418/scale_gateway/pkg/scaleutils"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

func NewPoller(opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 50
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 3 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Poller{
		registry:   opts.Registry,
		interval:   opts.Interval,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		client:     &http.Client{Timeout: opts.RequestTimeout},
		statusPort: opts.StatusPort,
		ping:       opts.Ping,
		clock:      opts.Clock,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Msgf("scale monitor started, interval %s", p.interval)

	for {
		p.safePoll(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("scale monitor stopped")
			return nil
		case <-p.clock.After(p.interval):
		}
	}
}

func (p *Poller) safePoll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("panic in monitor cycle: %v\n%s", r, debug.Stack())
		}
	}()
	if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("error in monitor cycle")
	}
}

// PollOnce probes every registered scale once.
func (p *Poller) PollOnce(ctx context.Context) error {
	scales, err := p.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scales: %w", err)
	}
	if len(scales) == 0 {
		return nil
	}

	log.Info().Msgf("monitoring %d scales", len(scales))

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range scales {
		if err := p.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			p.check(gctx, s)
			return nil
		})
	}
	return g.Wait()
}

func (p *Poller) check(ctx context.Context, s scaledb.Scale) {
	result := p.probe(ctx, s)
	if err := p.registry.RecordPoll(ctx, s.ID, result); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msgf("failed to record poll of %s (%s)", s.Nombre, s.IP)
	}
}

func (p *Poller) probe(ctx context.Context, s scaledb.Scale) scaledb.PollResult {
	now := p.clock.Now().UTC()
	url := "http://" + p.hostPort(s.IP) + "/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warn().Err(err).Msgf("scale %s (%s): bad address", s.Nombre, s.IP)
		return scaledb.PollResult{At: now}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn().Msgf("scale %s (%s): error - %v", s.Nombre, s.IP, err)
		return scaledb.PollResult{At: now, Reachable: p.pingFallback(ctx, s)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Msgf("scale %s (%s): HTTP %d", s.Nombre, s.IP, resp.StatusCode)
		reachable := true
		return scaledb.PollResult{At: now, Reachable: &reachable}
	}

	log.Debug().Msgf("scale %s (%s): OK", s.Nombre, s.IP)
	result := scaledb.PollResult{OK: true, At: now}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return result
	}

	var status gatewayStatus
	if err := json.Unmarshal(body, &status); err != nil {
		log.Debug().Err(err).Msgf("scale %s (%s): unreadable status body", s.Nombre, s.IP)
		return result
	}
	// A gateway that never measured reports fecha null; its 0.00 is not a reading.
	if status.Fecha == nil {
		return result
	}
	measured, err := scaleutils.ParseTimestamp(*status.Fecha)
	if err != nil {
		return result
	}
	weight, err := scaleutils.ParseWeight(status.Peso)
	if err != nil {
		return result
	}
	measured = measured.UTC()
	result.Weight = &weight
	result.MeasuredAt = &measured
	return result
}

func (p *Poller) pingFallback(ctx context.Context, s scaledb.Scale) *bool {
	if p.ping == nil {
		return nil
	}
	host := s.IP
	if h, _, err := net.SplitHostPort(s.IP); err == nil {
		host = h
	}
	ok, err := p.ping(ctx, host)
	if err != nil {
		log.Debug().Err(err).Msgf("ping %s failed", host)
		return nil
	}
	log.Info().Msgf("scale %s (%s): http down, ping reachable=%t", s.Nombre, s.IP, ok)
	return &ok
}

func (p *Poller) hostPort(ip string) string {
	if p.statusPort == 0 {
		return ip
	}
	if _, _, err := net.SplitHostPort(ip); err == nil {
		return ip
	}
	return net.JoinHostPort(ip, strconv.Itoa(p.statusPort))
}
