package tcpio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/metrics"
	"github.com/Simsys/espcand/internal/proto"
	"github.com/Simsys/espcand/internal/rxbuf"
)

// startReader pulls raw bytes off conn into a ring buffer, extracts
// complete datagrams and pushes them to tcpRx. The connection is closed
// after readDeadline of read silence (spec.md's idle-disconnect policy),
// or on any read/parse error that leaves the stream unrecoverable.
func (s *Server) startReader(ctxDone <-chan struct{}, conn net.Conn, logger *slog.Logger, connWG *sync.WaitGroup) {
	defer s.wg.Done()
	defer connWG.Done()
	defer func() { _ = conn.Close() }()

	ring := rxbuf.NewRingBuffer(s.ringBufSize)
	raw := make([]byte, 256)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
		n, err := conn.Read(raw)
		if n > 0 {
			if werr := ring.Write(raw[:n]); werr != nil {
				logger.Warn("ring_overflow", "error", werr)
				ring.Clear()
			}
			s.drainDatagrams(ring, logger)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Info("idle_timeout")
				return
			}
			wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
			metrics.IncError(mapErrToMetric(wrap))
			s.setError(wrap)
			return
		}
		select {
		case <-ctxDone:
			return
		default:
		}
	}
}

// drainDatagrams extracts every complete datagram currently sitting in
// ring and forwards it to tcpRx, dropping malformed ones (counted as
// parse errors) without closing the connection.
func (s *Server) drainDatagrams(ring *rxbuf.RingBuffer, logger *slog.Logger) {
	for {
		deser := proto.NewDeser(s.datagramCap)
		err := ring.Read(deser)
		if err != nil {
			if errors.Is(err, proto.BufIsEmpty) || errors.Is(err, proto.EndNotFound) {
				return
			}
			// BufIsFull: the datagram overran its buffer, resync by
			// dropping whatever is left before the next '$'.
			metrics.IncParseError()
			logger.Warn("datagram_overflow", "error", err)
			continue
		}
		item, derr := datagram.Deserialize(deser)
		if derr != nil {
			metrics.IncParseError()
			logger.Warn("datagram_parse_error", "error", derr)
			continue
		}
		metrics.IncTCPRx()
		if s.tcpRx != nil {
			select {
			case s.tcpRx <- item:
			default:
				logger.Warn("tcp_rx_channel_full")
			}
		}
	}
}
