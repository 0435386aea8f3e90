package port_reader

import (
	"errors"
	"fmt"
	"io"
	"time"

	jacobsa "github.com/jacobsa/go-serial/serial"
	bugst "go.bug.st/serial"
)

const (
	DriverBugst   = "bugst"
	DriverJacobsa = "jacobsa"
)

// How long a single Read waits for the first byte. Keeps the
// "anything in the buffer?" check close to non-blocking.
const pollTimeout = 50 * time.Millisecond

// FactoryFor returns the opener for a configured driver name.
func FactoryFor(driver string) (PortFactory, error) {
	switch driver {
	case "", DriverBugst:
		return OpenBugst, nil
	case DriverJacobsa:
		return OpenJacobsa, nil
	default:
		return nil, fmt.Errorf("unknown serial driver: %s", driver)
	}
}

// ListPorts returns the serial ports the OS reports.
func ListPorts() ([]string, error) {
	return bugst.GetPortsList()
}

// OpenBugst opens 8N1 without flow control, DTR and RTS held low.
func OpenBugst(opts Options) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
		InitialStatusBits: &bugst.ModemOutputBits{
			RTS: false,
			DTR: false,
		},
	}

	port, err := bugst.Open(opts.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(pollTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return port, nil
}

// OpenJacobsa opens the port through jacobsa/go-serial. The inter-character
// timeout with a zero minimum read size gives the same "return empty after a
// short wait" behaviour as the bugst driver.
func OpenJacobsa(opts Options) (Port, error) {
	options := jacobsa.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              uint(opts.BaudRate),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            jacobsa.PARITY_NONE,
		RTSCTSFlowControl:     false,
		InterCharacterTimeout: 100, // driver minimum, in ms
		MinimumReadSize:       0,
	}

	rwc, err := jacobsa.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	return &jacobsaPort{rwc: rwc}, nil
}

type jacobsaPort struct {
	rwc io.ReadWriteCloser
}

func (p *jacobsaPort) Read(b []byte) (int, error) {
	n, err := p.rwc.Read(b)
	// A VTIME expiry with no data surfaces as EOF from the file read.
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

func (p *jacobsaPort) Write(b []byte) (int, error) {
	return p.rwc.Write(b)
}

func (p *jacobsaPort) Close() error {
	return p.rwc.Close()
}

// The driver exposes no flush, so pending input is read and dropped.
func (p *jacobsaPort) ResetInputBuffer() error {
	buf := make([]byte, 1024)
	for range 64 {
		n, err := p.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// Nothing is ever queued for output between cycles.
func (p *jacobsaPort) ResetOutputBuffer() error {
	return nil
}
