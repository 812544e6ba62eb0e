package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.ObserveTrigger("button", "accepted")
	m.ObserveRecording("saved", 1)
	m.ObserveStopTimeout()
	m.ObserveButtonEvent("center")
	m.ObserveHandlerFailure()
	m.ObserveJobDropped()
	m.ObserveTranscription("ok")

	if m.Registry() != nil {
		t.Errorf("expected nil registry")
	}
}

func TestMetrics_Counts(t *testing.T) {
	m := New()

	m.ObserveTrigger("button", "accepted")
	m.ObserveTrigger("button", "rejected")
	m.ObserveTrigger("button", "rejected")
	m.ObserveButtonEvent("center")

	if got := testutil.ToFloat64(m.Triggers.WithLabelValues("button", "rejected")); got != 2 {
		t.Errorf("expected 2 rejected triggers, got %f", got)
	}

	if got := testutil.ToFloat64(m.ButtonEvents.WithLabelValues("center")); got != 1 {
		t.Errorf("expected 1 center event, got %f", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveStopTimeout()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "voice_trigger_recorder_stop_timeouts_total 1") {
		t.Errorf("stop timeout counter missing from output:\n%s", rec.Body.String())
	}
}
