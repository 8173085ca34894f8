// Package serialport opens and enumerates serial ports.
package serialport

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when a zero baud rate is requested.
const DefaultBaudRate = 115200

// Port is a byte stream with a configurable read deadline. A Read that
// times out returns 0 bytes and a nil error. Drain blocks until written
// bytes have left the transmitter.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Drain() error
}

// Info describes an available serial port.
type Info struct {
	Name        string
	Description string
}

// Ensure the library port satisfies Port.
var _ Port = (serial.Port)(nil)

// Open opens name at the given baud rate, 8N1, with readTimeout applied.
func Open(name string, baudRate int, readTimeout time.Duration) (Port, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
		}
	}

	return port, nil
}

// Ports returns a list of available serial ports.
func Ports() ([]Info, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Info, 0, len(ports))
	for _, name := range ports {
		result = append(result, Info{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// ReadFull reads exactly len(buf) bytes from p unless the deadline passes
// first. It returns the number of bytes read.
func ReadFull(p Port, buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	n := 0
	for n < len(buf) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return n, fmt.Errorf("read %d of %d bytes: %w", n, len(buf), ErrTimeout)
		}
		if err := p.SetReadTimeout(remaining); err != nil {
			return n, fmt.Errorf("failed to set read timeout: %w", err)
		}
		m, err := p.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
