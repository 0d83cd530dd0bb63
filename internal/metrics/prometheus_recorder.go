package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once                   sync.Once
	xrefDuration           *prom.HistogramVec
	syncRoundDuration      prom.Histogram
	xrefResults            *prom.CounterVec
	syncOutcome            *prom.CounterVec
	blobDuration           *prom.HistogramVec
	blobResults            *prom.CounterVec
	activeSyncSessions     prom.Gauge
	syncRetries            *prom.CounterVec
	syncRetriesExhausted   *prom.CounterVec
	verifyFailures         *prom.CounterVec
	moderationQueueDepth   prom.Gauge
	moderationDecisions    *prom.CounterVec
	deltaCompressionRatio  prom.Histogram
}

// NewPrometheusRecorder constructs the Prometheus metrics and registers them on
// reg (a new registry when reg is nil). Each recorder registers once; a second
// recorder on the same registry panics on duplicate registration.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.xrefDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "fossilgo",
			Name:      "xref_duration_seconds",
			Help:      "Duration of derived-table rebuilds per artifact type",
			Buckets:   prom.DefBuckets,
		}, []string{"artifact_type"})
		pr.syncRoundDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "fossilgo",
			Name:      "sync_round_duration_seconds",
			Help:      "Duration of a single sync round-trip",
			Buckets:   prom.DefBuckets,
		})
		pr.xrefResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fossilgo",
			Name:      "xref_results_total",
			Help:      "xref rebuild result counts by outcome",
		}, []string{"artifact_type", "result"})
		pr.syncOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fossilgo",
			Name:      "sync_outcomes_total",
			Help:      "Sync session outcomes by final status",
		}, []string{"outcome"})
		pr.blobDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "fossilgo",
			Name:      "blob_operation_duration_seconds",
			Help:      "Duration of blob store operations (put/get/delta)",
			Buckets:   prom.DefBuckets,
		}, []string{"operation", "result"})
		pr.blobResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fossilgo",
			Name:      "blob_operation_results_total",
			Help:      "Blob operation results by success/failure",
		}, []string{"operation", "result"})
		pr.activeSyncSessions = prom.NewGauge(prom.GaugeOpts{
			Namespace: "fossilgo",
			Name:      "active_sync_sessions",
			Help:      "Number of sync sessions currently in progress",
		})
		pr.syncRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fossilgo",
			Name:      "sync_retries_total",
			Help:      "Total sync round-trip retries (Busy/transient failures)",
		}, []string{"reason"})
		pr.syncRetriesExhausted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fossilgo",
			Name:      "sync_retry_exhausted_total",
			Help:      "Count of sync sessions where retries were exhausted",
		}, []string{"reason"})
		pr.verifyFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fossilgo",
			Name:      "verify_failures_total",
			Help:      "Pre-commit verifier rejections by reason",
		}, []string{"reason"})
		pr.moderationQueueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: "fossilgo",
			Name:      "moderation_queue_depth",
			Help:      "Current number of pending moderation requests",
		})
		pr.moderationDecisions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fossilgo",
			Name:      "moderation_decisions_total",
			Help:      "Moderation decisions by outcome (approve/disapprove)",
		}, []string{"decision"})
		pr.deltaCompressionRatio = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "fossilgo",
			Name:      "delta_compression_ratio",
			Help:      "Ratio of delta-encoded size to original size for newly stored blobs",
			Buckets:   prom.LinearBuckets(0, 0.1, 11),
		})
		reg.MustRegister(
			pr.xrefDuration, pr.syncRoundDuration, pr.xrefResults, pr.syncOutcome,
			pr.blobDuration, pr.blobResults, pr.activeSyncSessions, pr.syncRetries,
			pr.syncRetriesExhausted, pr.verifyFailures, pr.moderationQueueDepth,
			pr.moderationDecisions, pr.deltaCompressionRatio,
		)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveXrefDuration(artifactType string, d time.Duration) {
	if p == nil || p.xrefDuration == nil {
		return
	}
	p.xrefDuration.WithLabelValues(artifactType).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveSyncRoundDuration(d time.Duration) {
	if p == nil || p.syncRoundDuration == nil {
		return
	}
	p.syncRoundDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncXrefResult(artifactType string, result ResultLabel) {
	if p == nil || p.xrefResults == nil {
		return
	}
	p.xrefResults.WithLabelValues(artifactType, string(result)).Inc()
}

func (p *PrometheusRecorder) IncSyncOutcome(outcome SyncOutcomeLabel) {
	if p == nil || p.syncOutcome == nil {
		return
	}
	p.syncOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveBlobOperationDuration(op string, d time.Duration, success bool) {
	if p == nil || p.blobDuration == nil {
		return
	}
	p.blobDuration.WithLabelValues(op, resultString(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBlobOperationResult(op string, success bool) {
	if p == nil || p.blobResults == nil {
		return
	}
	p.blobResults.WithLabelValues(op, resultString(success)).Inc()
}

func (p *PrometheusRecorder) SetActiveSyncSessions(n int) {
	if p == nil || p.activeSyncSessions == nil {
		return
	}
	p.activeSyncSessions.Set(float64(n))
}

func (p *PrometheusRecorder) IncSyncRetry(reason string) {
	if p == nil || p.syncRetries == nil {
		return
	}
	p.syncRetries.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncSyncRetryExhausted(reason string) {
	if p == nil || p.syncRetriesExhausted == nil {
		return
	}
	p.syncRetriesExhausted.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncVerifyFailure(reason string) {
	if p == nil || p.verifyFailures == nil {
		return
	}
	p.verifyFailures.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) SetModerationQueueDepth(n int) {
	if p == nil || p.moderationQueueDepth == nil {
		return
	}
	p.moderationQueueDepth.Set(float64(n))
}

func (p *PrometheusRecorder) IncModerationDecision(decision string) {
	if p == nil || p.moderationDecisions == nil {
		return
	}
	p.moderationDecisions.WithLabelValues(decision).Inc()
}

func (p *PrometheusRecorder) ObserveDeltaCompressionRatio(ratio float64) {
	if p == nil || p.deltaCompressionRatio == nil {
		return
	}
	p.deltaCompressionRatio.Observe(ratio)
}

func resultString(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
