// Package loop implements an in-process loopback CAN driver: everything
// sent is handed straight back to the next Recv call. It is grounded on
// the teacher's fakeSerialPort test double, promoted here to a
// first-class backend for hardware-free development and integration
// tests.
package loop

import (
	"context"
	"errors"
	"sync"

	"github.com/Simsys/espcand/internal/canframe"
)

// ErrClosed is returned by Send/Recv once Close has been called.
var ErrClosed = errors.New("loop driver closed")

// ErrFull is returned by Send when the loopback buffer has no room.
var ErrFull = errors.New("loop driver buffer full")

// Driver is a candrv.Driver backed by a single buffered channel wired
// back to itself.
type Driver struct {
	rx        chan canframe.Frame
	closed    chan struct{}
	closeOnce sync.Once
}

// New returns a loopback driver with the given receive buffer depth.
func New(buf int) *Driver {
	return &Driver{
		rx:     make(chan canframe.Frame, buf),
		closed: make(chan struct{}),
	}
}

// Send enqueues f to be returned by the next Recv call. It reports
// ErrFull if the buffer is full and ErrClosed if the driver has been
// closed.
func (d *Driver) Send(f canframe.Frame) error {
	select {
	case <-d.closed:
		return ErrClosed
	default:
	}
	select {
	case d.rx <- f:
		return nil
	case <-d.closed:
		return ErrClosed
	default:
		return ErrFull
	}
}

// Recv returns the next looped-back frame.
func (d *Driver) Recv(ctx context.Context) (canframe.Frame, error) {
	select {
	case f := <-d.rx:
		return f, nil
	case <-d.closed:
		return canframe.Frame{}, ErrClosed
	case <-ctx.Done():
		return canframe.Frame{}, ctx.Err()
	}
}

// Close unblocks every pending Recv and Send.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}
