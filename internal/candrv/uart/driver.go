// Package uart implements the candrv.Driver backend for a UART-attached
// CAN transceiver, framed with a length-prefixed checksummed envelope in
// the style of the teacher's internal/serial codec, generalized from the
// teacher's Ampio-specific UART frame to a CAN-frame envelope.
package uart

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/Simsys/espcand/internal/canframe"
	"github.com/Simsys/espcand/internal/transport"
)

const (
	txQueueSize       = 1024
	readBufSize       = 4096
	reclaimThreshold  = 16 * 1024
	backoffMin        = 20 * time.Millisecond
	backoffMax        = 500 * time.Millisecond
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// Driver is a candrv.Driver bound to one UART-attached CAN transceiver.
type Driver struct {
	port   Port
	tx     *transport.AsyncTx[canframe.Frame]
	rx     chan canframe.Frame
	done   chan struct{}
	cancel context.CancelFunc
}

// Open binds name/baud and starts the RX loop. onMalformed, if non-nil,
// is invoked once per resync the decoder performs (driving the bridge's
// parse-error metric).
func Open(ctx context.Context, name string, baud int, readTimeout time.Duration, rxBuf int, onMalformed func()) (*Driver, error) {
	port, err := openPortFn(name, baud, readTimeout)
	if err != nil {
		return nil, err
	}
	return wrap(ctx, port, rxBuf, onMalformed), nil
}

func wrap(parent context.Context, port Port, rxBuf int, onMalformed func()) *Driver {
	ctx, cancel := context.WithCancel(parent)
	d := &Driver{
		port:   port,
		rx:     make(chan canframe.Frame, rxBuf),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	d.tx = transport.NewAsyncTx[canframe.Frame](ctx, txQueueSize, func(f canframe.Frame) error {
		_, err := port.Write(Encode(f))
		return err
	}, transport.Hooks{})
	go d.readLoop(ctx, onMalformed)
	return d
}

func (d *Driver) readLoop(ctx context.Context, onMalformed func()) {
	defer close(d.done)
	buf := make([]byte, readBufSize)
	acc := bytes.NewBuffer(nil)
	backoff := backoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := d.port.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			malformed := DecodeStream(acc, func(f canframe.Frame) {
				select {
				case d.rx <- f:
				default:
				}
			})
			if malformed > 0 && onMalformed != nil {
				for i := 0; i < malformed; i++ {
					onMalformed()
				}
			}
			if acc.Len() == 0 && cap(acc.Bytes()) > reclaimThreshold {
				acc = bytes.NewBuffer(nil)
			}
			backoff = backoffMin
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var perr *os.PathError
			if errors.As(err, &perr) {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				continue
			}
			sleepFn(backoff)
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
		}
	}
}

// Recv returns the next decoded frame.
func (d *Driver) Recv(ctx context.Context) (canframe.Frame, error) {
	select {
	case f := <-d.rx:
		return f, nil
	case <-d.done:
		return canframe.Frame{}, errClosed
	case <-ctx.Done():
		return canframe.Frame{}, ctx.Err()
	}
}

// Send queues f for asynchronous transmission.
func (d *Driver) Send(f canframe.Frame) error {
	return d.tx.SendFrame(f)
}

// Close stops the RX loop and closes the underlying port.
func (d *Driver) Close() error {
	d.cancel()
	d.tx.Close()
	err := d.port.Close()
	<-d.done
	return err
}

var errClosed = errors.New("uart driver closed")
