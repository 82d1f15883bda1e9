package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "harpoon_event_duration_sec",
	Help: "Total duration of moderation event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harpoon_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var pipelineErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harpoon_pipeline_errors",
	Help: "Number of pipeline errors, by kind",
}, []string{"kind"})

var violationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harpoon_violations_detected",
	Help: "Number of violation candidates emitted",
}, []string{"type"})

var actionAppliedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harpoon_actions_applied",
	Help: "Number of moderation actions applied",
}, []string{"action"})

var guardContentionCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "harpoon_guard_contention",
	Help: "Number of violation signals skipped because a cycle was already in flight",
})

var guardViolationCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "harpoon_guard_violations",
	Help: "Number of detected concurrent validator invocations for one subject",
})

var suppressedEventCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "harpoon_events_suppressed",
	Help: "Number of self-generated events suppressed by the ignore registry",
})
