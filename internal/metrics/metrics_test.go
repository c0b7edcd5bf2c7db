package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.FetchResult("ok")
	m.FetchRetry()
	m.PlayerSkipped()
	m.PlayerDone(time.Millisecond, 10)
	m.Windows(3)
	if err := m.WriteTextfile("/nonexistent/dir/x.prom"); err != nil {
		t.Errorf("nil metrics should not write: %v", err)
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.FetchResult("ok")
	m.FetchResult("ok")
	m.FetchResult("error")
	m.PlayerDone(2*time.Millisecond, 100)
	m.PlayerDone(3*time.Millisecond, 50)
	m.PlayerSkipped()

	if got := testutil.ToFloat64(m.fetchRequests.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok requests: want 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.observations); got != 150 {
		t.Errorf("observations: want 150, got %v", got)
	}
	if got := testutil.ToFloat64(m.playersTotal.WithLabelValues("skipped")); got != 1 {
		t.Errorf("skipped: want 1, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Windows(250)
	path := filepath.Join(t.TempDir(), "rollcorr.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "rollcorr_correlate_windows 250") {
		t.Errorf("textfile missing windows gauge:\n%s", data)
	}
}
