package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var ErrGaveUp = errors.New("live feed: max retries reached")

type ListenOptions struct {
	// host[:port] of the gateway.
	Host string
	// 0 retries forever.
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	// A connection silent for longer is considered dead. 0 disables the check.
	ReadTimeout time.Duration
	Clock       clockwork.Clock
}

// Listen subscribes to a gateway feed and calls handle for every message,
// reconnecting with exponential backoff. It returns nil when ctx is
// cancelled and ErrGaveUp after MaxRetries consecutive failed dials.
func Listen(ctx context.Context, opts ListenOptions, handle func(Message)) error {
	if opts.BaseRetryDelay <= 0 {
		opts.BaseRetryDelay = 2 * time.Second
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = 60 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	u := url.URL{Scheme: "ws", Host: opts.Host, Path: "/ws"}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	retryCount := 0

	for {
		if retryCount > 0 {
			delay := backoff(retryCount, opts.BaseRetryDelay, opts.MaxRetryDelay)
			log.Info().Msgf("retrying %s in %s (attempt %d)", u.String(), delay, retryCount+1)
			select {
			case <-ctx.Done():
				return nil
			case <-opts.Clock.After(delay):
			}
		}

		log.Info().Msgf("connecting to %s", u.String())
		conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("live feed connection failed")
			retryCount++
			if opts.MaxRetries > 0 && retryCount >= opts.MaxRetries {
				return ErrGaveUp
			}
			continue
		}

		log.Info().Msg("connected, receiving readings")
		retryCount = 0

		readFeed(ctx, conn, opts.ReadTimeout, handle)
		_ = conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Msg("live feed connection lost, will retry")
		retryCount = 1
	}
}

// readFeed returns when the connection breaks or ctx ends.
func readFeed(ctx context.Context, conn *websocket.Conn, readTimeout time.Duration, handle func(Message)) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			if readTimeout > 0 {
				_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			}
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("live feed error")
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Warn().Msgf("failed to parse live feed message: %s", string(data))
				continue
			}
			handle(msg)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		// Unblocks the reader if the peer never answers the close.
		_ = conn.Close()
		<-done
	}
}

func backoff(retry int, base, maxDelay time.Duration) time.Duration {
	if retry > 16 {
		return maxDelay
	}
	d := time.Duration(1<<(retry-1)) * base
	if d > maxDelay {
		return maxDelay
	}
	return d
}
