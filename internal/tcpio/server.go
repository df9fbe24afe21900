// Package tcpio implements the TCP side of the bridge: a single-client
// listener that turns a byte stream into datagram.Item values for the
// router and serializes the router's replies back onto the wire,
// generalized from the teacher's internal/server package (which spoke a
// binary multi-frame batch protocol to many simultaneous clients) down to
// this protocol's one-client, one-datagram-at-a-time contract.
package tcpio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Simsys/espcand/internal/connwatch"
	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/logging"
	"github.com/Simsys/espcand/internal/metrics"
)

const (
	defaultReadDeadline = 10 * time.Second
	defaultRingBufSize  = 2048
	defaultDatagramCap  = 128
)

// Server owns the TCP listener and enforces the "at most one host
// connected" policy: a second connection attempt while one client is
// active is accepted and immediately closed.
type Server struct {
	mu   sync.RWMutex
	addr string

	tcpRx     chan<- datagram.Item
	tcpTx     <-chan datagram.Item
	connWatch *connwatch.Watch

	readDeadline time.Duration
	ringBufSize  int
	datagramCap  int

	logger    *slog.Logger
	listener  net.Listener
	readyOnce sync.Once
	readyCh   chan struct{}
	lastErrMu sync.Mutex
	lastErr   error
	errCh     chan error

	active atomic.Bool
	wg     sync.WaitGroup

	totalAccepted  atomic.Uint64
	totalRejected  atomic.Uint64
	totalConnected atomic.Uint64
}

type ServerOption func(*Server)

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		readDeadline: defaultReadDeadline,
		ringBufSize:  defaultRingBufSize,
		datagramCap:  defaultDatagramCap,
		readyCh:      make(chan struct{}),
		errCh:        make(chan error, 1),
		logger:       logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.addr == "" {
		s.addr = ":0"
	}
	return s
}

func WithListenAddr(a string) ServerOption { return func(s *Server) { s.addr = a } }
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
func WithReadDeadline(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.readDeadline = d
		}
	}
}
func WithRingBufSize(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.ringBufSize = n
		}
	}
}
func WithTCPRx(ch chan<- datagram.Item) ServerOption { return func(s *Server) { s.tcpRx = ch } }
func WithTCPTx(ch <-chan datagram.Item) ServerOption { return func(s *Server) { s.tcpTx = ch } }
func WithConnWatch(w *connwatch.Watch) ServerOption  { return func(s *Server) { s.connWatch = w } }

func (s *Server) Addr() string           { s.mu.RLock(); defer s.mu.RUnlock(); return s.addr }
func (s *Server) setAddr(a string)       { s.mu.Lock(); s.addr = a; s.mu.Unlock() }
func (s *Server) Ready() <-chan struct{} { return s.readyCh }
func (s *Server) Errors() <-chan error   { return s.errCh }

func (s *Server) setError(err error) {
	if err == nil {
		return
	}
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *Server) LastError() error {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	return s.lastErr
}

// Serve accepts TCP clients, enforcing one active client at a time, and
// spawns reader/writer goroutines for the connection it admits.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	addr := s.addr
	s.mu.Unlock()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	s.setAddr(ln.Addr().String())
	s.listener = ln
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("tcp_listen", "addr", s.Addr())
	go func() { <-ctx.Done(); _ = ln.Close() }()
	for {
		if err := s.acceptOnce(ctx, ln); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Server) acceptOnce(ctx context.Context, ln net.Listener) error {
	conn, err := ln.Accept()
	if err != nil {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		wrap := fmt.Errorf("%w: %v", ErrAccept, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	s.totalAccepted.Add(1)
	connLogger := s.logger.With("remote", conn.RemoteAddr().String())

	if !s.active.CompareAndSwap(false, true) {
		s.totalRejected.Add(1)
		connLogger.Warn("client_reject_busy")
		_ = conn.Close()
		return nil
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	s.totalConnected.Add(1)
	connLogger.Info("client_connected")
	if s.connWatch != nil {
		s.connWatch.Set(true)
	}
	metrics.SetConnected(true)

	var connWG sync.WaitGroup
	connWG.Add(2)
	s.wg.Add(2)
	// connDone closes when the server stops or the reader exits, so the
	// writer does not hold the client slot after the connection is gone.
	connDone := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-readerDone:
		}
		close(connDone)
	}()
	go func() {
		s.startReader(connDone, conn, connLogger, &connWG)
		close(readerDone)
	}()
	go s.startWriter(connDone, conn, connLogger, &connWG)
	go func() {
		connWG.Wait()
		s.active.Store(false)
		if s.connWatch != nil {
			s.connWatch.Set(false)
		}
		metrics.SetConnected(false)
		connLogger.Info("client_disconnected")
	}()
	return nil
}

// Shutdown closes the listener and waits for in-flight goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	wgDone := make(chan struct{})
	go func() { s.wg.Wait(); close(wgDone) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: shutdown timeout: %v", ErrContext, ctx.Err())
	case <-wgDone:
		s.logger.Info("shutdown_summary", "accepted", s.totalAccepted.Load(), "rejected", s.totalRejected.Load(), "connected", s.totalConnected.Load())
		return nil
	}
}
