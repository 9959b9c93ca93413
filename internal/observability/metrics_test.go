package observability

import (
	"testing"
	"time"

	"github.com/danmuck/wlctl/internal/protocol/session"
	"github.com/danmuck/wlctl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ session.Metrics = (*WireMetrics)(nil)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("wlmon-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordConnectAttempt("wlmon-a", false)
	SetGlobals("wlmon-a", 4)

	if got := testutil.ToFloat64(globalsGauge.WithLabelValues("wlmon-a")); got != 4 {
		t.Fatalf("globals gauge got=%v", got)
	}
}

func TestWireMetricsCounts(t *testing.T) {
	testlog.Start(t)
	m := NewWireMetrics("wire-test")

	m.MessageSent("wl_display", "sync", 12, 0)
	m.MessageSent("wl_shm", "create_pool", 20, 1)
	m.MessageReceived("wl_callback", "done", 12, 0)
	m.ProtocolError("decode")

	if got := testutil.ToFloat64(wireMessages.WithLabelValues("wire-test", "sent", "wl_shm", "create_pool")); got != 1 {
		t.Fatalf("sent create_pool got=%v", got)
	}
	if got := testutil.ToFloat64(wireBytes.WithLabelValues("wire-test", "sent")); got != 32 {
		t.Fatalf("sent bytes got=%v", got)
	}
	if got := testutil.ToFloat64(wireFDs.WithLabelValues("wire-test", "sent")); got != 1 {
		t.Fatalf("sent fds got=%v", got)
	}
	if got := testutil.ToFloat64(protocolErrors.WithLabelValues("wire-test", "decode")); got != 1 {
		t.Fatalf("protocol errors got=%v", got)
	}
}
