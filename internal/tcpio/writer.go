package tcpio

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/metrics"
	"github.com/Simsys/espcand/internal/proto"
	"github.com/Simsys/espcand/internal/transport"
)

// startWriter drains tcpTx, serializes each item, and hands the wire
// bytes to a transport.AsyncTx so the actual conn.Write runs through the
// same single-goroutine fan-in and drop/error hooks as the CAN transmit
// path (internal/candrv/uart uses transport.AsyncTx[canframe.Frame] the
// same way); this protocol has no batching contract, so every item is
// flushed to the wire as soon as it is ready.
func (s *Server) startWriter(ctxDone <-chan struct{}, conn net.Conn, logger *slog.Logger, connWG *sync.WaitGroup) {
	defer s.wg.Done()
	defer connWG.Done()

	writeErr := make(chan error, 1)
	tx := transport.NewAsyncTx[[]byte](context.Background(), s.datagramCap, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	}, transport.Hooks{
		OnError: func(err error) {
			wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
			metrics.IncError(mapErrToMetric(wrap))
			s.setError(wrap)
			select {
			case writeErr <- wrap:
			default:
			}
		},
		OnAfter: func() { metrics.IncTCPTx() },
		OnDrop: func() error {
			logger.Warn("tcp_tx_queue_full")
			return nil
		},
	})
	defer tx.Close()

	for {
		select {
		case item, ok := <-s.tcpTx:
			if !ok {
				return
			}
			ser := proto.NewSer(s.datagramCap)
			if err := datagram.Serialize(item, ser); err != nil {
				logger.Warn("datagram_serialize_error", "error", err)
				continue
			}
			_ = tx.SendFrame(ser.Bytes())
		case <-writeErr:
			return
		case <-ctxDone:
			return
		}
	}
}
