package runtime

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// AggregationType names a summary of the latencies of one target.
type AggregationType string

const (
	AggAvg AggregationType = "avg"
	AggMin AggregationType = "min"
	AggMax AggregationType = "max"
	AggP50 AggregationType = "p50"
	AggP90 AggregationType = "p90"
	AggP99 AggregationType = "p99"
)

// ResultMatcher determines if a traced return value should be counted.
type ResultMatcher interface {
	Matches(returnValue string) bool
}

// ExactMatcher matches an exact rendered value.  "*" matches everything.
type ExactMatcher struct {
	Value string
}

func (m *ExactMatcher) Matches(returnValue string) bool {
	if m.Value == "*" {
		return true
	}
	return returnValue == m.Value
}

// NotMatcher inverts the match result
type NotMatcher struct {
	Inner ResultMatcher
}

func (m *NotMatcher) Matches(returnValue string) bool {
	return !m.Inner.Matches(returnValue)
}

// CreateResultMatcher parses "*", "!=<value>" or an exact value.
func CreateResultMatcher(pattern string) ResultMatcher {
	if pattern == "" || pattern == "*" {
		return &ExactMatcher{Value: "*"}
	}
	if len(pattern) > 2 && pattern[:2] == "!=" {
		return &NotMatcher{Inner: &ExactMatcher{Value: pattern[2:]}}
	}
	return &ExactMatcher{Value: pattern}
}

// CallStats summarizes the completed calls of one routine or function.
// Durations are milliseconds.
type CallStats struct {
	Target    string    `json:"target"`
	Count     int       `json:"count"`
	Failures  int       `json:"failures"`
	Durations []float64 `json:"-"`
}

// Aggregate computes one summary of the recorded durations.
func (s *CallStats) Aggregate(agg AggregationType) (float64, error) {
	if len(s.Durations) == 0 {
		return 0, nil
	}
	sorted := slices.Clone(s.Durations)
	sort.Float64s(sorted)
	switch agg {
	case AggAvg:
		var total float64
		for _, d := range sorted {
			total += d
		}
		return total / float64(len(sorted)), nil
	case AggMin:
		return sorted[0], nil
	case AggMax:
		return sorted[len(sorted)-1], nil
	case AggP50:
		return percentile(sorted, 0.50), nil
	case AggP90:
		return percentile(sorted, 0.90), nil
	case AggP99:
		return percentile(sorted, 0.99), nil
	}
	return 0, fmt.Errorf("invalid aggregation: %s", agg)
}

// percentile uses the nearest rank of an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	rank := int(p*float64(len(sorted))+0.5) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}

// MetricStore aggregates the exit events of execution traces per target.
type MetricStore struct {
	mu      sync.RWMutex
	matcher ResultMatcher
	stats   map[string]*CallStats
}

// NewMetricStore creates a store counting the calls whose rendered return
// value matches pattern (see CreateResultMatcher).  Failed calls are always
// counted.
func NewMetricStore(pattern string) *MetricStore {
	return &MetricStore{
		matcher: CreateResultMatcher(pattern),
		stats:   make(map[string]*CallStats),
	}
}

// ProcessTraceEvent adds one event.  Only exit events count.
func (ms *MetricStore) ProcessTraceEvent(event *TraceEvent) {
	if event.Kind != EventExit {
		return
	}
	failed := event.ErrorMessage != ""
	if !failed && !ms.matcher.Matches(event.ReturnValue) {
		return
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	s, ok := ms.stats[event.Target]
	if !ok {
		s = &CallStats{Target: event.Target}
		ms.stats[event.Target] = s
	}
	s.Count++
	if failed {
		s.Failures++
	}
	s.Durations = append(s.Durations, event.Duration)
}

// ProcessTrace adds every event of a trace.
func (ms *MetricStore) ProcessTrace(data *TraceData) {
	for _, event := range data.Events {
		ms.ProcessTraceEvent(event)
	}
}

// Get returns the stats of one target.
func (ms *MetricStore) Get(target string) (*CallStats, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	s, ok := ms.stats[target]
	return s, ok
}

// Targets lists the targets seen so far, sorted.
func (ms *MetricStore) Targets() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make([]string, 0, len(ms.stats))
	for t := range ms.stats {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Clear removes all data.
func (ms *MetricStore) Clear() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.stats = make(map[string]*CallStats)
}
