package port_reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/config"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Upper bound on what one cycle pulls from the port.
const maxDrainBytes = 8 * 1024

var (
	ErrPortNotOpen  = errors.New("serial port not open")
	ErrWriteTimeout = errors.New("serial write timed out")
)

// OptionsFromConfig converts the millisecond config values.
func OptionsFromConfig(cfg config.SerialConfig) Options {
	return Options{
		PortName:       cfg.Port,
		BaudRate:       cfg.BaudRate,
		ReadTimeout:    time.Duration(cfg.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout:   time.Duration(cfg.WriteTimeoutMs) * time.Millisecond,
		SettleDelay:    time.Duration(cfg.SettleDelayMs) * time.Millisecond,
		ReopenDelay:    time.Duration(cfg.ReopenDelayMs) * time.Millisecond,
		RequestCommand: cfg.RequestCommand,
	}
}

// NewSession creates a closed session. Call Open before ReadLines.
func NewSession(opts Options, factory PortFactory, clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if factory == nil {
		factory = OpenBugst
	}
	return &Session{
		opts:    opts,
		factory: factory,
		clock:   clock,
		readBuf: make([]byte, 1024),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) PortName() string {
	return s.opts.PortName
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Open opens the port, discards anything already buffered and waits for the
// line to settle. A failure leaves the session faulted so the next
// ReadLines retries.
func (s *Session) Open(ctx context.Context) error {
	s.setState(StateOpening)
	log.Info().Msgf("opening serial port %s at %d baud", s.opts.PortName, s.opts.BaudRate)

	port, err := s.factory(s.opts)
	if err != nil {
		s.setState(StateFaulted)
		return err
	}
	s.port = port

	if err := port.ResetInputBuffer(); err != nil {
		log.Warn().Err(err).Msg("failed to discard serial input buffer")
	}
	if err := port.ResetOutputBuffer(); err != nil {
		log.Warn().Err(err).Msg("failed to discard serial output buffer")
	}

	if err := s.wait(ctx, s.opts.SettleDelay); err != nil {
		s.closePort()
		s.setState(StateClosed)
		return err
	}

	s.setState(StateOpen)
	log.Info().Msgf("serial port %s open", s.opts.PortName)
	return nil
}

// Reopen closes whatever is left of the port, waits the reopen delay and
// opens again.
func (s *Session) Reopen(ctx context.Context) error {
	log.Warn().Msgf("reopening serial port %s", s.opts.PortName)
	s.closePort()
	if err := s.wait(ctx, s.opts.ReopenDelay); err != nil {
		return err
	}
	return s.Open(ctx)
}

// ReadLines returns the non-empty lines received since the previous call.
// Only CR/LF terminated lines are returned; an unfinished tail is held back
// until the rest of it arrives. No data is not an error. When the port is not open the cycle is spent
// reopening it and no lines are returned; a failed reopen yields
// ErrPortNotOpen. An I/O error faults the session and is returned.
func (s *Session) ReadLines(ctx context.Context) ([]string, error) {
	if s.State() != StateOpen || s.port == nil {
		log.Warn().Msgf("serial port %s not open, reconnecting", s.opts.PortName)
		if err := s.Reopen(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPortNotOpen, err)
		}
		return nil, nil
	}

	if s.opts.RequestCommand != "" {
		if err := s.writeRequest(); err != nil {
			s.fault(err)
			return nil, fmt.Errorf("failed to send request command: %w", err)
		}
	}

	data, err := s.drain()
	if err != nil {
		s.fault(err)
		return nil, fmt.Errorf("failed to read serial port: %w", err)
	}

	log.Debug().Msgf("read %d bytes from scale: %q", len(data), data)
	complete := s.takeComplete(data)
	if strings.TrimSpace(complete) == "" {
		log.Trace().Msg("no complete line from scale")
		return nil, nil
	}
	return SplitLines(complete), nil
}

// takeComplete joins data onto the held tail and returns everything up to the
// last line terminator. A tail that outgrows maxDrainBytes without a
// terminator is dropped.
func (s *Session) takeComplete(data string) string {
	buf := s.partial + data
	cut := strings.LastIndexAny(buf, "\r\n") + 1
	s.partial = buf[cut:]
	if len(s.partial) >= maxDrainBytes {
		log.Warn().Msgf("discarding %d bytes from scale without line terminator", len(s.partial))
		s.partial = ""
	}
	return buf[:cut]
}

// Close releases the port. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	if s.port != nil {
		err = s.port.Close()
		s.port = nil
	}
	s.partial = ""
	s.setState(StateClosed)
	return err
}

// drain reads until the port has nothing more, the byte cap is hit or the
// read timeout elapses.
func (s *Session) drain() (string, error) {
	deadline := s.clock.Now().Add(s.opts.ReadTimeout)
	var sb strings.Builder

	for sb.Len() < maxDrainBytes {
		n, err := s.port.Read(s.readBuf)
		if n > 0 {
			sb.Write(s.readBuf[:n])
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return sb.String(), err
		}
		if n == 0 {
			break
		}
		if s.opts.ReadTimeout > 0 && !s.clock.Now().Before(deadline) {
			break
		}
	}

	return sb.String(), nil
}

func (s *Session) writeRequest() error {
	port := s.port
	done := make(chan error, 1)
	go func() {
		_, err := port.Write([]byte(s.opts.RequestCommand))
		done <- err
	}()

	if s.opts.WriteTimeout <= 0 {
		return <-done
	}

	select {
	case err := <-done:
		return err
	case <-s.clock.After(s.opts.WriteTimeout):
		// Closing the port in fault() unblocks the pending write.
		return ErrWriteTimeout
	}
}

func (s *Session) fault(err error) {
	log.Error().Err(err).Msgf("serial port %s faulted", s.opts.PortName)
	s.closePort()
	s.setState(StateFaulted)
}

func (s *Session) closePort() {
	s.partial = ""
	if s.port == nil {
		return
	}
	if err := s.port.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing serial port")
	}
	s.port = nil
}

func (s *Session) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}

// SplitLines splits on CR and LF, trims each line and drops empty ones.
func SplitLines(data string) []string {
	fields := strings.FieldsFunc(data, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		if line := strings.TrimSpace(f); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
