package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveXrefDuration("commit", 150*time.Millisecond)
	pr.ObserveSyncRoundDuration(500 * time.Millisecond)
	pr.IncXrefResult("commit", ResultSuccess)
	pr.IncSyncOutcome(SyncOutcomeSuccess)
	pr.ObserveBlobOperationDuration("put", 2*time.Millisecond, true)
	pr.IncBlobOperationResult("get", true)
	pr.SetActiveSyncSessions(3)
	pr.IncSyncRetry("busy")
	pr.IncSyncRetryExhausted("busy")
	pr.IncVerifyFailure("parent-mismatch")
	pr.SetModerationQueueDepth(2)
	pr.IncModerationDecision("approve")
	pr.ObserveDeltaCompressionRatio(0.42)

	// Basic scrape to ensure metrics encode without panic.
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}

func TestPrometheusRecorderIdempotentRegistration(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.once.Do(func() { t.Fatal("once should already be consumed") })
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveXrefDuration("commit", time.Millisecond)
	pr.IncSyncOutcome(SyncOutcomeFailed)
	pr.SetActiveSyncSessions(1)
}

func TestTestRecorderRecordsCalls(t *testing.T) {
	tr := newTestRecorder()
	tr.ObserveXrefDuration("wiki", time.Millisecond)
	tr.IncXrefResult("wiki", ResultSuccess)
	tr.IncSyncOutcome(SyncOutcomeSuccess)
	tr.IncVerifyFailure("bad-hash")
	tr.SetModerationQueueDepth(5)
	tr.IncModerationDecision("disapprove")

	if tr.xrefDurations["wiki"] != 1 {
		t.Fatal("expected one xref duration sample")
	}
	if tr.xrefResults["wiki"][ResultSuccess] != 1 {
		t.Fatal("expected one xref success result")
	}
	if tr.syncOutcomes[SyncOutcomeSuccess] != 1 {
		t.Fatal("expected one sync success outcome")
	}
	if tr.verifyFailures["bad-hash"] != 1 {
		t.Fatal("expected one verify failure")
	}
	if tr.moderationQueue != 5 {
		t.Fatal("expected moderation queue depth 5")
	}
	if tr.moderationDecs["disapprove"] != 1 {
		t.Fatal("expected one disapprove decision")
	}
}

func TestNoopRecorderNeverPanics(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveXrefDuration("commit", time.Millisecond)
	r.ObserveSyncRoundDuration(time.Millisecond)
	r.IncXrefResult("commit", ResultWarning)
	r.IncSyncOutcome(SyncOutcomeCanceled)
	r.ObserveBlobOperationDuration("delta", time.Millisecond, false)
	r.IncBlobOperationResult("delta", false)
	r.SetActiveSyncSessions(0)
	r.IncSyncRetry("network")
	r.IncSyncRetryExhausted("network")
	r.IncVerifyFailure("x")
	r.SetModerationQueueDepth(0)
	r.IncModerationDecision("approve")
	r.ObserveDeltaCompressionRatio(1.0)
}
