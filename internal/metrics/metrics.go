package metrics

import (
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/common/log"
)

var (
	// PrivateMetrics about the internal world (go process, private stuff)
	PrivateMetrics = prometheus.NewRegistry()
	// DKGMetrics about the sessions run by this process
	DKGMetrics = prometheus.NewRegistry()

	// TranscriptsRecorded counts the transcripts accepted into a session
	TranscriptsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dkg_transcripts_recorded",
		Help: "Number of dealer transcripts recorded in a session",
	}, []string{"session_id"})

	// DealerVerifications counts the individual transcript checks by outcome
	DealerVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dkg_dealer_verifications",
		Help: "Number of dealer transcripts verified, by result",
	}, []string{"result"})

	// AggregationDuration measures how long it takes to verify and sum the
	// recorded transcripts of a session.
	AggregationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dkg_aggregation_duration_seconds",
		Help:    "Time spent aggregating the transcripts of a session",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// DecryptionSharesCreated counts the decryption shares produced locally
	DecryptionSharesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tpke_decryption_shares_created",
		Help: "Number of decryption shares created, by variant",
	}, []string{"variant"})

	// SharesCombined counts the decryption shares fed to the combiner
	SharesCombined = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tpke_shares_combined",
		Help: "Number of decryption share elements combined into shared secrets",
	})

	dkgTau = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dkg_tau",
		Help: "The epoch tag of the session",
	}, []string{"session_id"})

	dkgState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dkg_state",
		Help: "DKG state: 0-Sharing, 1-Dealt, 2-Success, 3-Invalid",
	}, []string{"session_id"})

	dkgStateTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dkg_state_timestamp",
		Help: "Timestamp when the DKG state last changed",
	}, []string{"session_id"})

	buildTime = prometheus.NewUntypedFunc(prometheus.UntypedOpts{
		Name:        "stakedkg_build_time",
		Help:        "Timestamp when the binary was built in seconds since the Epoch",
		ConstLabels: map[string]string{"build": common.COMMIT, "version": common.GetAppVersion().String()},
	}, func() float64 { return float64(getBuildTimestamp(common.BUILDDATE)) })

	metricsBound sync.Once
)

func bindMetrics(l log.Logger) {
	if err := PrivateMetrics.Register(collectors.NewGoCollector()); err != nil {
		l.Errorw("error in bindMetrics", "metrics", "goCollector", "err", err)
		return
	}
	if err := PrivateMetrics.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		l.Errorw("error in bindMetrics", "metrics", "processCollector", "err", err)
		return
	}

	dkg := []prometheus.Collector{
		TranscriptsRecorded,
		DealerVerifications,
		AggregationDuration,
		DecryptionSharesCreated,
		SharesCombined,
		dkgTau,
		dkgState,
		dkgStateTimestamp,
		buildTime,
	}
	for _, c := range dkg {
		if err := DKGMetrics.Register(c); err != nil {
			l.Errorw("error in bindMetrics", "metrics", "bindMetrics", "err", err)
			return
		}
		if err := PrivateMetrics.Register(c); err != nil {
			l.Errorw("error in bindMetrics", "metrics", "bindMetrics", "err", err)
			return
		}
	}
}

// Start serves the private metrics on metricsBind. A bare port is bound on
// the loopback interface. It returns nil if the listener cannot be created.
func Start(logger log.Logger, metricsBind string, pprof http.Handler) net.Listener {
	logger.Infow("metrics starting", "desired_port", metricsBind)

	metricsBound.Do(func() {
		bindMetrics(logger)
	})

	if !strings.Contains(metricsBind, ":") {
		metricsBind = "127.0.0.1:" + metricsBind
	}
	l, err := net.Listen("tcp", metricsBind)
	if err != nil {
		logger.Warnw("", "metrics", "listen failed", "err", err)
		return nil
	}
	logger.Infow("metric listener started", "addr", l.Addr())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(PrivateMetrics, promhttp.HandlerOpts{Registry: PrivateMetrics}))
	mux.Handle("/metrics/dkg", promhttp.HandlerFor(DKGMetrics, promhttp.HandlerOpts{Registry: DKGMetrics}))

	if pprof != nil {
		mux.Handle("/debug/pprof/", pprof)
	}

	mux.HandleFunc("/debug/gc", func(w http.ResponseWriter, _ *http.Request) {
		runtime.GC()
		fmt.Fprintf(w, "GC run complete")
	})

	s := http.Server{Addr: l.Addr().String(), ReadHeaderTimeout: 3 * time.Second, Handler: mux}
	go func() {
		logger.Warnw("", "metrics", "listen finished", "err", s.Serve(l))
	}()
	return l
}

func getBuildTimestamp(buildDate string) int64 {
	if buildDate == "" {
		return 0
	}

	layout := "02/01/2006@15:04:05"
	t, err := time.Parse(layout, buildDate)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// DKGStateChange emits the dkgState, dkgStateTimestamp and dkgTau metrics
func DKGStateChange(sessionID string, tau uint64, state uint32) {
	dkgTau.WithLabelValues(sessionID).Set(float64(tau))
	dkgState.WithLabelValues(sessionID).Set(float64(state))
	dkgStateTimestamp.WithLabelValues(sessionID).SetToCurrentTime()
}

// DealerVerified records the outcome of a transcript verification
func DealerVerified(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	DealerVerifications.WithLabelValues(result).Inc()
}
