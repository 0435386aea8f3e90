package port_reader

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Port is the part of a serial driver the session needs.
// Read must return (0, nil) when nothing arrived within the driver timeout.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// PortFactory opens a configured port. Swapped out in tests.
type PortFactory func(opts Options) (Port, error)

type Options struct {
	PortName     string
	BaudRate     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SettleDelay  time.Duration
	ReopenDelay  time.Duration
	// Sent before each read when the scale only answers on request.
	RequestCommand string
}

type State int32

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Session owns one serial port and turns whatever the scale sent since the
// last cycle into text lines. Not safe for concurrent use, except State.
type Session struct {
	opts    Options
	factory PortFactory
	clock   clockwork.Clock
	port    Port
	state   atomic.Int32
	readBuf []byte
	// Bytes after the last line terminator, completed by the next cycle.
	partial string
}
