package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/Simsys/espcand/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	CanRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_rx_frames_total",
		Help: "Total CAN frames received from the CAN driver.",
	})
	CanTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_tx_frames_total",
		Help: "Total CAN frames written to the CAN driver.",
	})
	TCPRxDatagrams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_rx_datagrams_total",
		Help: "Total datagrams received from the TCP host.",
	})
	TCPTxDatagrams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_tx_datagrams_total",
		Help: "Total datagrams sent to the TCP host.",
	})
	ForwardedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forwarded_frames_total",
		Help: "Total CAN frames forwarded to the TCP host after passing the filter sets.",
	})
	DroppedByNFilter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dropped_by_nfilter_total",
		Help: "Total CAN frames dropped because a negative filter matched.",
	})
	DroppedByPFilter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dropped_by_pfilter_total",
		Help: "Total CAN frames dropped because no positive filter currently allowed them (no match, or rate limited).",
	})
	PersistSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "persist_saves_total",
		Help: "Total configuration images written to the NVS partition.",
	})
	PersistLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "persist_loads_total",
		Help: "Total configuration items replayed from the NVS partition at boot.",
	})
	ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "host_connected",
		Help: "Whether a TCP host is currently connected (0 or 1).",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	ParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parse_errors_total",
		Help: "Total rejected malformed datagrams or frames (protocol violations, invalid length, truncated, checksum failure).",
	})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTCPRead     = "tcp_read"
	ErrTCPWrite    = "tcp_write"
	ErrCanRead     = "can_read"
	ErrCanWrite    = "can_write"
	ErrCanOverflow = "can_tx_overflow"
	ErrPersistSave = "persist_save"
	ErrPersistLoad = "persist_load"
)

// StartHTTP serves Prometheus metrics at /metrics on a fresh mux, plus a
// /ready endpoint gated by the registered readiness function.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localCanRx          uint64
	localCanTx          uint64
	localTCPRx          uint64
	localTCPTx          uint64
	localForwarded      uint64
	localDroppedN       uint64
	localDroppedP       uint64
	localPersistSaves   uint64
	localPersistLoads   uint64
	localErrors         uint64
	localParseErrors    uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	CanRx         uint64
	CanTx         uint64
	TCPRx         uint64
	TCPTx         uint64
	Forwarded     uint64
	DroppedN      uint64
	DroppedP      uint64
	PersistSaves  uint64
	PersistLoads  uint64
	Errors        uint64
	ParseErrors   uint64
}

func Snap() Snapshot {
	return Snapshot{
		CanRx:        atomic.LoadUint64(&localCanRx),
		CanTx:        atomic.LoadUint64(&localCanTx),
		TCPRx:        atomic.LoadUint64(&localTCPRx),
		TCPTx:        atomic.LoadUint64(&localTCPTx),
		Forwarded:    atomic.LoadUint64(&localForwarded),
		DroppedN:     atomic.LoadUint64(&localDroppedN),
		DroppedP:     atomic.LoadUint64(&localDroppedP),
		PersistSaves: atomic.LoadUint64(&localPersistSaves),
		PersistLoads: atomic.LoadUint64(&localPersistLoads),
		Errors:       atomic.LoadUint64(&localErrors),
		ParseErrors:  atomic.LoadUint64(&localParseErrors),
	}
}

func IncCanRx() {
	CanRxFrames.Inc()
	atomic.AddUint64(&localCanRx, 1)
}

func IncCanTx() {
	CanTxFrames.Inc()
	atomic.AddUint64(&localCanTx, 1)
}

func IncTCPRx() {
	TCPRxDatagrams.Inc()
	atomic.AddUint64(&localTCPRx, 1)
}

func IncTCPTx() {
	TCPTxDatagrams.Inc()
	atomic.AddUint64(&localTCPTx, 1)
}

func IncForwarded() {
	ForwardedFrames.Inc()
	atomic.AddUint64(&localForwarded, 1)
}

func IncDroppedByNFilter() {
	DroppedByNFilter.Inc()
	atomic.AddUint64(&localDroppedN, 1)
}

func IncDroppedByPFilter() {
	DroppedByPFilter.Inc()
	atomic.AddUint64(&localDroppedP, 1)
}

func IncPersistSave() {
	PersistSaves.Inc()
	atomic.AddUint64(&localPersistSaves, 1)
}

func IncPersistLoad() {
	PersistLoads.Inc()
	atomic.AddUint64(&localPersistLoads, 1)
}

func SetConnected(connected bool) {
	if connected {
		ConnectedGauge.Set(1)
		return
	}
	ConnectedGauge.Set(0)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncParseError() {
	ParseErrors.Inc()
	atomic.AddUint64(&localParseErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrTCPRead, ErrTCPWrite, ErrCanRead, ErrCanWrite, ErrCanOverflow,
		ErrPersistSave, ErrPersistLoad,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
