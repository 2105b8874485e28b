// Package metrics provides a small instrumentation interface with a no-op
// default and a Prometheus-backed implementation.
package metrics

import "time"

// Outcome labels.
const (
	OutcomeOK            = "ok"
	OutcomeUnknownSort   = "unknown_sort"
	OutcomeInvalidDegree = "invalid_degree"
	OutcomeInvalidInput  = "invalid_input"
	OutcomeError         = "error"
)

// Recorder defines the metrics surface used by the facade.
type Recorder interface {
	IncQueryTotal(outcome string)
	ObserveQuerySeconds(outcome string, seconds float64)
	ObserveMatches(n int)
}

type noopRecorder struct{}

func (noopRecorder) IncQueryTotal(string)                {}
func (noopRecorder) ObserveQuerySeconds(string, float64) {}
func (noopRecorder) ObserveMatches(int)                  {}

// Noop returns a Recorder that discards everything.
func Noop() Recorder { return noopRecorder{} }

// TimeQuery starts timing a query. Call the returned func once with the
// outcome label and the number of matches.
func TimeQuery(r Recorder) func(outcome string, matches int) {
	start := time.Now()
	return func(outcome string, matches int) {
		r.IncQueryTotal(outcome)
		r.ObserveQuerySeconds(outcome, time.Since(start).Seconds())
		if outcome == OutcomeOK {
			r.ObserveMatches(matches)
		}
	}
}
