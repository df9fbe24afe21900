// Package router implements the bridge's single cooperative event loop:
// it owns the filter sets and the persistence handle, and dispatches
// whichever of the CAN-rx or TCP-rx channel produces a value first,
// exactly as spec.md §4.8 describes, generalized from the teacher's
// internal/server.Server "own state for process lifetime, wire via
// functional options" construction idiom.
package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/Simsys/espcand/internal/canframe"
	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/filter"
	"github.com/Simsys/espcand/internal/logging"
	"github.com/Simsys/espcand/internal/metrics"
	"github.com/Simsys/espcand/internal/persist"
	"github.com/Simsys/espcand/internal/proto"
)

// Router is the single writer of the filter sets (spec.md §9: "no
// fine-grained locks inside filter records" — enforced here by giving
// exactly one goroutine, Run's loop, access to them).
type Router struct {
	pfilters *filter.PFilters
	nfilters *filter.NFilters
	store    *persist.Store

	canRx <-chan canframe.Frame
	canTx chan<- canframe.Frame
	tcpRx <-chan datagram.Item
	tcpTx chan<- datagram.Item

	clock  func() filter.Instant
	logger *slog.Logger
}

type Option func(*Router)

// New builds a Router. A nil *persist.Store is valid: Save requests are
// then logged and dropped rather than causing a nil-pointer fault, for
// backends with no NVS region configured.
func New(pfilters *filter.PFilters, nfilters *filter.NFilters, opts ...Option) *Router {
	r := &Router{
		pfilters: pfilters,
		nfilters: nfilters,
		clock:    defaultClock,
		logger:   logging.L(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func defaultClock() filter.Instant { return filter.Instant(uint32(time.Now().UnixMilli())) }

func WithCanRx(ch <-chan canframe.Frame) Option { return func(r *Router) { r.canRx = ch } }
func WithCanTx(ch chan<- canframe.Frame) Option { return func(r *Router) { r.canTx = ch } }
func WithTCPRx(ch <-chan datagram.Item) Option  { return func(r *Router) { r.tcpRx = ch } }
func WithTCPTx(ch chan<- datagram.Item) Option  { return func(r *Router) { r.tcpTx = ch } }
func WithStore(s *persist.Store) Option         { return func(r *Router) { r.store = s } }
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}
func WithClock(fn func() filter.Instant) Option {
	return func(r *Router) {
		if fn != nil {
			r.clock = fn
		}
	}
}

// Run blocks dispatching canRx/tcpRx until ctx is done.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-r.canRx:
			r.handleCanRx(ctx, frame)
		case item := <-r.tcpRx:
			r.handleTCPRx(ctx, item)
		}
	}
}

func (r *Router) handleCanRx(ctx context.Context, frame canframe.Frame) {
	if r.nfilters.Check(frame.ID, frame.Extended) {
		metrics.IncDroppedByNFilter()
		return
	}
	if !r.pfilters.Check(frame.ID, frame.Extended, r.clock()) {
		metrics.IncDroppedByPFilter()
		return
	}
	metrics.IncForwarded()
	r.sendTCP(ctx, datagram.Item{Kind: datagram.ReceivedFrame, Frame: frame})
}

func (r *Router) handleTCPRx(ctx context.Context, item datagram.Item) {
	switch item.Kind {
	case datagram.ClearFilters:
		r.pfilters.Clear()
		r.nfilters.Clear()
	case datagram.Echo, datagram.ErrorItem:
		r.sendTCP(ctx, item)
	case datagram.FrameToSend:
		r.sendCan(ctx, item.Frame)
	case datagram.NFilterItem:
		if err := r.nfilters.Add(item.NFilter); err != nil {
			r.sendTCP(ctx, errItem(err))
		}
	case datagram.PFilterItem:
		if err := r.pfilters.Add(filter.NewPFilter(item.PFilter)); err != nil {
			r.sendTCP(ctx, errItem(err))
		}
	case datagram.Save:
		r.handleSave(ctx)
	case datagram.ShowFilters:
		r.handleShowFilters(ctx)
	case datagram.End, datagram.MagicItem, datagram.ReceivedFrame:
		// not host-legal; dropped (spec.md §4.8).
	}
}

func (r *Router) handleSave(ctx context.Context) {
	if r.store == nil {
		r.logger.Warn("save_without_store")
		return
	}
	if err := r.store.Save(r.pfilters, r.nfilters); err != nil {
		metrics.IncError(metrics.ErrPersistSave)
		r.logger.Error("persist_save_error", "error", err)
		r.sendTCP(ctx, errItem(proto.SerializeError))
		return
	}
	metrics.IncPersistSave()
}

func (r *Router) handleShowFilters(ctx context.Context) {
	for _, f := range r.pfilters.Items() {
		r.sendTCP(ctx, datagram.Item{Kind: datagram.PFilterItem, PFilter: f.ToPrePFilter()})
	}
	for _, f := range r.nfilters.Items() {
		r.sendTCP(ctx, datagram.Item{Kind: datagram.NFilterItem, NFilter: f})
	}
}

func errItem(err error) datagram.Item {
	e, ok := err.(proto.Error)
	if !ok {
		e = proto.SerializeError
	}
	return datagram.Item{Kind: datagram.ErrorItem, Err: e}
}

func (r *Router) sendTCP(ctx context.Context, item datagram.Item) {
	if r.tcpTx == nil {
		return
	}
	select {
	case r.tcpTx <- item:
	case <-ctx.Done():
	}
}

func (r *Router) sendCan(ctx context.Context, frame canframe.Frame) {
	if r.canTx == nil {
		return
	}
	select {
	case r.canTx <- frame:
	case <-ctx.Done():
	}
}
