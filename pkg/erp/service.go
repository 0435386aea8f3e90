package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/config"
	"github.com/NotCoffee418/scale_gateway/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	probeTarget      = "8.8.8.8:65530"
	fallbackAddress  = "127.0.0.1"
	maxResponseBytes = 64 * 1024
)

func NewClient(cfg config.ERPConfig) *Client {
	tokens := make([]string, 0, len(cfg.ConfirmationTokens))
	for _, t := range cfg.ConfirmationTokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, strings.ToUpper(t))
		}
	}
	return &Client{
		url:      cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		tokens:   tokens,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutS) * time.Second,
		},
	}
}

// Deliver posts one weight and reports whether the ERP confirmed it.
// Failures are logged and never returned.
func (c *Client) Deliver(ctx context.Context, address string, weight float64) bool {
	attempt, err := c.Send(ctx, address, weight)
	if err != nil {
		log.Warn().
			Err(err).
			Str("address", attempt.Address).
			Float64("weight", attempt.Weight).
			Int("status", attempt.HTTPStatus).
			Msg("weight delivery failed")
		return false
	}

	log.Info().
		Str("address", attempt.Address).
		Float64("weight", attempt.Weight).
		Int("status", attempt.HTTPStatus).
		Bool("confirmed", attempt.Confirmed).
		Msg("weight delivered")
	return true
}

// Send performs the request. A nil error means the ERP confirmed the weight.
func (c *Client) Send(ctx context.Context, address string, weight float64) (types.DeliveryAttempt, error) {
	attempt := types.DeliveryAttempt{Address: address, Weight: weight}
	if weight <= 0 {
		return attempt, fmt.Errorf("%w: %.2f", ErrInvalidWeight, weight)
	}

	body, err := json.Marshal(payload{Address: address, Weight: weight})
	if err != nil {
		return attempt, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return attempt, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	log.Debug().Msgf("posting weight %.2f to %s", weight, c.url)
	resp, err := c.http.Do(req)
	if err != nil {
		return attempt, fmt.Errorf("failed to post weight: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing erp response body")
		}
	}()

	attempt.HTTPStatus = resp.StatusCode
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return attempt, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return attempt, fmt.Errorf("%w: status %d", ErrDeliveryRejected, resp.StatusCode)
	}
	if !c.confirmed(string(respBody)) {
		return attempt, fmt.Errorf("%w: %q", ErrNotConfirmed, truncate(string(respBody), 200))
	}

	attempt.Confirmed = true
	return attempt, nil
}

func (c *Client) confirmed(body string) bool {
	upper := strings.ToUpper(body)
	for _, token := range c.tokens {
		if strings.Contains(upper, token) {
			return true
		}
	}
	return false
}

// ResolveLocalAddress returns override when set, otherwise the local IP the
// default route would use. No packet is sent.
func ResolveLocalAddress(override string) string {
	if override != "" {
		return override
	}

	conn, err := net.Dial("udp", probeTarget)
	if err != nil {
		log.Warn().Err(err).Msgf("failed to detect local address, using %s", fallbackAddress)
		return fallbackAddress
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return fallbackAddress
	}
	return addr.IP.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
