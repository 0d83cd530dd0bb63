package metrics

import "time"

// testRecorder is a minimal in-memory Recorder used to assert call counts
// from packages that accept a metrics.Recorder without pulling in Prometheus.
type testRecorder struct {
	xrefDurations    map[string]int
	xrefResults      map[string]map[ResultLabel]int
	syncRounds       int
	syncOutcomes     map[SyncOutcomeLabel]int
	blobOps          map[string]int
	activeSessions   int
	syncRetries      map[string]int
	verifyFailures   map[string]int
	moderationQueue  int
	moderationDecs   map[string]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{
		xrefDurations:  map[string]int{},
		xrefResults:    map[string]map[ResultLabel]int{},
		syncOutcomes:   map[SyncOutcomeLabel]int{},
		blobOps:        map[string]int{},
		syncRetries:    map[string]int{},
		verifyFailures: map[string]int{},
		moderationDecs: map[string]int{},
	}
}

func (t *testRecorder) ObserveXrefDuration(artifactType string, _ time.Duration) {
	t.xrefDurations[artifactType]++
}
func (t *testRecorder) ObserveSyncRoundDuration(time.Duration) { t.syncRounds++ }
func (t *testRecorder) IncXrefResult(artifactType string, result ResultLabel) {
	m, ok := t.xrefResults[artifactType]
	if !ok {
		m = map[ResultLabel]int{}
		t.xrefResults[artifactType] = m
	}
	m[result]++
}
func (t *testRecorder) IncSyncOutcome(outcome SyncOutcomeLabel) { t.syncOutcomes[outcome]++ }
func (t *testRecorder) ObserveBlobOperationDuration(op string, _ time.Duration, _ bool) {
	t.blobOps[op]++
}
func (t *testRecorder) IncBlobOperationResult(op string, _ bool) { t.blobOps[op]++ }
func (t *testRecorder) SetActiveSyncSessions(n int)              { t.activeSessions = n }
func (t *testRecorder) IncSyncRetry(reason string)               { t.syncRetries[reason]++ }
func (t *testRecorder) IncSyncRetryExhausted(reason string)       { t.syncRetries[reason]++ }
func (t *testRecorder) IncVerifyFailure(reason string)            { t.verifyFailures[reason]++ }
func (t *testRecorder) SetModerationQueueDepth(n int)             { t.moderationQueue = n }
func (t *testRecorder) IncModerationDecision(decision string)     { t.moderationDecs[decision]++ }
func (t *testRecorder) ObserveDeltaCompressionRatio(float64)      {}
