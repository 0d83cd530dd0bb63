package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestWithRepoPath(t *testing.T) {
	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/var/repo.fossil")

	lc := GetContext(ctx)
	if lc.RepoPath != "/var/repo.fossil" {
		t.Errorf("expected /var/repo.fossil, got %s", lc.RepoPath)
	}
}

func TestWithSyncSessionID(t *testing.T) {
	ctx := context.Background()
	ctx = WithSyncSessionID(ctx, "sess-456")

	lc := GetContext(ctx)
	if lc.SyncSessionID != "sess-456" {
		t.Errorf("expected sess-456, got %s", lc.SyncSessionID)
	}
}

func TestWithStage(t *testing.T) {
	ctx := context.Background()
	ctx = WithStage(ctx, "negotiate")

	lc := GetContext(ctx)
	if lc.Stage != "negotiate" {
		t.Errorf("expected negotiate, got %s", lc.Stage)
	}
}

func TestWithTraceID(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-789")

	lc := GetContext(ctx)
	if lc.TraceID != "trace-789" {
		t.Errorf("expected trace-789, got %s", lc.TraceID)
	}
}

func TestWithRid(t *testing.T) {
	ctx := context.Background()
	ctx = WithRid(ctx, 42)

	lc := GetContext(ctx)
	if lc.Rid != 42 {
		t.Errorf("expected 42, got %d", lc.Rid)
	}
}

func TestMultipleContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/repo-1")
	ctx = WithSyncSessionID(ctx, "sess-1")
	ctx = WithStage(ctx, "xref")
	ctx = WithTraceID(ctx, "trace-1")

	lc := GetContext(ctx)

	if lc.RepoPath != "/repo-1" {
		t.Error("expected /repo-1")
	}
	if lc.SyncSessionID != "sess-1" {
		t.Error("expected sess-1")
	}
	if lc.Stage != "xref" {
		t.Error("expected xref")
	}
	if lc.TraceID != "trace-1" {
		t.Error("expected trace-1")
	}
}

func TestContextChaining(t *testing.T) {
	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/repo-1")
	ctx = WithSyncSessionID(ctx, "sess-1")

	lc := GetContext(ctx)

	if lc.RepoPath != "/repo-1" {
		t.Error("RepoPath was lost in chaining")
	}
	if lc.SyncSessionID != "sess-1" {
		t.Error("SyncSessionID was lost in chaining")
	}
}

func TestOverwriteContextValue(t *testing.T) {
	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/repo-1")
	ctx = WithRepoPath(ctx, "/repo-2")

	lc := GetContext(ctx)
	if lc.RepoPath != "/repo-2" {
		t.Errorf("expected /repo-2, got %s", lc.RepoPath)
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	lc := GetContext(ctx)

	if lc.RepoPath != "" || lc.SyncSessionID != "" || lc.Stage != "" {
		t.Error("expected empty context")
	}
}

func TestHasContextValue(t *testing.T) {
	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/repo-1")
	ctx = WithSyncSessionID(ctx, "sess-1")

	tests := []struct {
		field    string
		expected bool
	}{
		{"repo.path", true},
		{"sync.session", true},
		{"stage", false},
		{"trace.id", false},
		{"rid", false},
	}

	for _, tt := range tests {
		if HasContextValue(ctx, tt.field) != tt.expected {
			t.Errorf("HasContextValue(%s) expected %v", tt.field, tt.expected)
		}
	}
}

func TestInfoContext(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/repo-1")
	ctx = WithSyncSessionID(ctx, "sess-1")

	InfoContext(ctx, "test message", slog.String("extra", "value"))

	output := buf.String()
	if !contains(output, "/repo-1") {
		t.Error("expected repo path in log output")
	}
	if !contains(output, "sess-1") {
		t.Error("expected sync session in log output")
	}
	if !contains(output, "test message") {
		t.Error("expected message in log output")
	}
}

func TestWarnContext(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx = WithStage(ctx, "negotiate")

	WarnContext(ctx, "warning message", slog.String("reason", "timeout"))

	output := buf.String()
	if !contains(output, "negotiate") {
		t.Error("expected stage in log output")
	}
	if !contains(output, "warning message") {
		t.Error("expected message in log output")
	}
}

func TestErrorContext(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/repo-error")
	ctx = WithTraceID(ctx, "trace-error")

	ErrorContext(ctx, "error occurred", slog.String("error", "connection failed"))

	output := buf.String()
	if !contains(output, "/repo-error") {
		t.Error("expected repo path in log output")
	}
	if !contains(output, "trace-error") {
		t.Error("expected trace-error in log output")
	}
}

func TestDebugContext(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx = WithRid(ctx, 123)

	DebugContext(ctx, "debug info", slog.Int("count", 42))

	output := buf.String()
	if !contains(output, "123") {
		t.Error("expected rid in log output")
	}
}

func TestLogBuilder(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/repo-1")

	lb := NewLogBuilder(ctx)
	lb.With("operation", "clone").With("duration_ms", 150).Info("operation completed")

	output := buf.String()
	if !contains(output, "/repo-1") {
		t.Error("expected repo path in log output")
	}
	if !contains(output, "clone") {
		t.Error("expected operation in log output")
	}
	if !contains(output, "150") {
		t.Error("expected duration in log output")
	}
}

func TestLogBuilderChaining(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/repo-1")
	ctx = WithSyncSessionID(ctx, "sess-1")

	lb := NewLogBuilder(ctx).
		With("stage", "xref").
		With("artifacts_found", 5).
		With("success", true)

	lb.Info("xref build completed")

	output := buf.String()
	if !contains(output, "/repo-1") {
		t.Error("expected repo path in log output")
	}
	if !contains(output, "sess-1") {
		t.Error("expected sync session in log output")
	}
	if !contains(output, "xref") {
		t.Error("expected stage in log output")
	}
}

func TestLogBuilderWithVariousTypes(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()

	lb := NewLogBuilder(ctx).
		With("string_val", "test").
		With("int_val", 42).
		With("int64_val", int64(9999)).
		With("float_val", 3.14).
		With("bool_val", true)

	lb.Info("type test")

	output := buf.String()
	if !contains(output, "test") {
		t.Error("expected string value in log output")
	}
}

func TestContextIsolation(t *testing.T) {
	ctx1 := context.Background()
	ctx1 = WithRepoPath(ctx1, "/repo-1")

	ctx2 := context.Background()
	ctx2 = WithRepoPath(ctx2, "/repo-2")

	lc1 := GetContext(ctx1)
	lc2 := GetContext(ctx2)

	if lc1.RepoPath != "/repo-1" {
		t.Error("context1 modified")
	}
	if lc2.RepoPath != "/repo-2" {
		t.Error("context2 modified")
	}
}

func TestComplexContextFlow(t *testing.T) {
	ctx := context.Background()

	ctx = WithRepoPath(ctx, "/repo-123")
	ctx = WithSyncSessionID(ctx, "sess-456")

	negotiateCtx := WithStage(ctx, "negotiate")
	negotiateCtx = WithTraceID(negotiateCtx, "trace-negotiate-1")

	lc := GetContext(negotiateCtx)
	if lc.RepoPath != "/repo-123" || lc.SyncSessionID != "sess-456" ||
		lc.Stage != "negotiate" || lc.TraceID != "trace-negotiate-1" {
		t.Error("complex context flow failed")
	}

	xrefCtx := WithStage(ctx, "xref")
	xrefCtx = WithTraceID(xrefCtx, "trace-xref-1")

	lc = GetContext(xrefCtx)
	if lc.RepoPath != "/repo-123" || lc.SyncSessionID != "sess-456" ||
		lc.Stage != "xref" || lc.TraceID != "trace-xref-1" {
		t.Error("complex context flow for xref failed")
	}
}

func TestGetLogAttrsWithMixedValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithRepoPath(ctx, "/repo-1")
	ctx = WithSyncSessionID(ctx, "sess-1")

	attrs := getLogAttrs(ctx)

	if len(attrs) < 2 {
		t.Errorf("expected at least 2 attributes, got %d", len(attrs))
	}

	attrStr := ""
	for _, attr := range attrs {
		attrStr += attr.Key
	}

	if !contains(attrStr, "repo.path") {
		t.Error("expected repo.path attribute")
	}
	if !contains(attrStr, "sync.session") {
		t.Error("expected sync.session attribute")
	}
}

func contains(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
