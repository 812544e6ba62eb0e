package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voice_trigger"

// Metrics instruments the trigger-to-utterance pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Triggers       *prometheus.CounterVec
	Recordings     *prometheus.CounterVec
	StopTimeouts   prometheus.Counter
	RecordingTime  prometheus.Histogram
	ButtonEvents   *prometheus.CounterVec
	HandlerFailure prometheus.Counter
	JobsDropped    prometheus.Counter
	Transcriptions *prometheus.CounterVec
}

// New creates the metrics on a private registry so several instances can
// coexist in one process (tests).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Triggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Triggers received by the coordinator, by source and result",
		}, []string{"source", "result"}),
		Recordings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "Recording sessions by outcome",
		}, []string{"result"}),
		StopTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_stop_timeouts_total",
			Help:      "Capture loops that did not acknowledge a stop in time",
		}),
		RecordingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Duration of captured utterances",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		ButtonEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "button_events_total",
			Help:      "Button release events decoded from hardware reports",
		}, []string{"event"}),
		HandlerFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "button_handler_failures_total",
			Help:      "Button handlers that returned an error or panicked",
		}),
		JobsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "button_jobs_dropped_total",
			Help:      "Handler invocations dropped because the worker queue was full",
		}),
		Transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcription collaborator calls by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

func (m *Metrics) ObserveTrigger(source, result string) {
	if m == nil {
		return
	}

	m.Triggers.WithLabelValues(source, result).Inc()
}

func (m *Metrics) ObserveRecording(result string, seconds float64) {
	if m == nil {
		return
	}

	m.Recordings.WithLabelValues(result).Inc()

	if seconds > 0 {
		m.RecordingTime.Observe(seconds)
	}
}

func (m *Metrics) ObserveStopTimeout() {
	if m == nil {
		return
	}

	m.StopTimeouts.Inc()
}

func (m *Metrics) ObserveButtonEvent(event string) {
	if m == nil {
		return
	}

	m.ButtonEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveHandlerFailure() {
	if m == nil {
		return
	}

	m.HandlerFailure.Inc()
}

func (m *Metrics) ObserveJobDropped() {
	if m == nil {
		return
	}

	m.JobsDropped.Inc()
}

func (m *Metrics) ObserveTranscription(result string) {
	if m == nil {
		return
	}

	m.Transcriptions.WithLabelValues(result).Inc()
}
