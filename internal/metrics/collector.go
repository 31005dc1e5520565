// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector counts orchestration events. A nil *Collector is valid and
// records nothing, so call sites never need to guard.
type Collector struct {
	modelCalls       *prometheus.CounterVec
	toolCalls        *prometheus.CounterVec
	truncatedResults prometheus.Counter
	refinementRounds prometheus.Counter
	meetingRounds    prometheus.Counter
}

// NewCollector registers the counters on reg. Pass a fresh
// prometheus.NewRegistry() when the default registry is not wanted
// (tests do).
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := func(name, help string, labels ...string) *prometheus.CounterVec {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
		reg.MustRegister(cv)
		return cv
	}
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}

	return &Collector{
		modelCalls:       factory("model_calls_total", "Completed model transport calls.", "provider", "outcome"),
		toolCalls:        factory("tool_calls_total", "Dispatched tool calls.", "tool", "outcome"),
		truncatedResults: counter("truncated_results_total", "Tool results truncated before entering the history."),
		refinementRounds: counter("refinement_rounds_total", "Critic-triggered refinement passes."),
		meetingRounds:    counter("meeting_rounds_total", "Completed deliberation rounds."),
	}
}

func (c *Collector) ModelCall(provider string, ok bool) {
	if c == nil {
		return
	}
	c.modelCalls.WithLabelValues(provider, outcome(ok)).Inc()
}

func (c *Collector) ToolCall(tool string, ok bool) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(tool, outcome(ok)).Inc()
}

func (c *Collector) TruncatedResult() {
	if c == nil {
		return
	}
	c.truncatedResults.Inc()
}

func (c *Collector) RefinementRound() {
	if c == nil {
		return
	}
	c.refinementRounds.Inc()
}

func (c *Collector) MeetingRound() {
	if c == nil {
		return
	}
	c.meetingRounds.Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
