// Package watchdog keeps a liveness sink fed while the controller runs.
package watchdog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Kicker is a liveness sink.
type Kicker interface {
	Kick() error
	Close() error
}

// magicClose disarms a Linux watchdog device on close.
const magicClose = 'V'

// ErrClosed is returned by Kick after Close.
var ErrClosed = errors.New("watchdog closed")

// Device feeds a watchdog device file such as /dev/watchdog.
type Device struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

var _ Kicker = (*Device)(nil)

// Open opens the watchdog device at path. Opening arms the watchdog.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %w", path, err)
	}
	return NewDevice(f), nil
}

// NewDevice wraps an already opened device.
func NewDevice(w io.WriteCloser) *Device {
	return &Device{w: w}
}

// Kick writes one keep-alive byte.
func (d *Device) Kick() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	_, err := d.w.Write([]byte{0})
	return err
}

// Close disarms and closes the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	_, werr := d.w.Write([]byte{magicClose})
	return errors.Join(werr, d.w.Close())
}

// Nop accepts kicks and does nothing.
type Nop struct{}

func (Nop) Kick() error  { return nil }
func (Nop) Close() error { return nil }

// Fake counts kicks for tests.
type Fake struct {
	kicks  atomic.Int64
	closed atomic.Bool
}

var _ Kicker = (*Fake)(nil)

func (f *Fake) Kick() error {
	if f.closed.Load() {
		return ErrClosed
	}
	f.kicks.Add(1)
	return nil
}

func (f *Fake) Close() error {
	f.closed.Store(true)
	return nil
}

// Kicks returns the number of successful kicks.
func (f *Fake) Kicks() int64 { return f.kicks.Load() }

// Closed reports whether Close was called.
func (f *Fake) Closed() bool { return f.closed.Load() }
