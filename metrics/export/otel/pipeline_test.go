package otel

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
)

// syncBuffer guards a bytes.Buffer; the periodic reader logs from its own goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogPipelineFlushWritesNonZeroMetrics(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))
	src := &fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricRefreshSuccess: 5,
			},
		},
		dropped: 2,
	}

	p, err := NewLogPipeline(src, logger, time.Hour)
	if err != nil {
		t.Fatalf("NewLogPipeline failed: %v", err)
	}
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatal("expected at least one metrics record")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["msg"] != "metrics" {
		t.Fatalf("msg = %v, want metrics", rec["msg"])
	}
	if rec["authcore_refresh_success_total"] != float64(5) {
		t.Fatalf("refresh_success = %v, want 5", rec["authcore_refresh_success_total"])
	}
	if rec["authcore_audit_dropped_total"] != float64(2) {
		t.Fatalf("audit_dropped = %v, want 2", rec["authcore_audit_dropped_total"])
	}
	if _, ok := rec["authcore_login_success_total"]; ok {
		t.Fatal("zero-valued counter should be omitted")
	}
}

func TestLogPipelineRejectsBadInput(t *testing.T) {
	if _, err := NewLogPipeline(&fakeSource{}, nil, 0); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := NewLogPipeline(nil, nil, time.Second); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestLogExporterSkipsEmptyCollections(t *testing.T) {
	var out syncBuffer
	src := &fakeSource{}

	p, err := NewLogPipeline(src, slog.New(slog.NewJSONHandler(&out, nil)), time.Hour)
	if err != nil {
		t.Fatalf("NewLogPipeline failed: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if out.String() != "" {
		t.Fatalf("expected no output for an all-zero snapshot, got %q", out.String())
	}
}
