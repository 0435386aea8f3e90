package monitor

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/rs/zerolog/log"
)

// NewPinger returns a PingFunc sending a single echo request.
// Unprivileged mode uses UDP and needs no root.
func NewPinger(privileged bool, timeout time.Duration) PingFunc {
	return func(ctx context.Context, host string) (bool, error) {
		pinger, err := probing.NewPinger(host)
		if err != nil {
			return false, err
		}

		pinger.Count = 1
		pinger.Timeout = timeout
		pinger.SetPrivileged(privileged)

		if err := pinger.RunWithContext(ctx); err != nil {
			return false, err
		}

		stats := pinger.Statistics()
		if stats.PacketsRecv > 0 {
			log.Debug().Msgf("ping %s ok in %s", host, stats.AvgRtt)
			return true, nil
		}
		return false, nil
	}
}
