package models

import (
	"time"
)

// MetricStatus is the lifecycle state of an OperationMetric
type MetricStatus string

const (
	StatusRunning MetricStatus = "running"
	StatusSuccess MetricStatus = "success"
	StatusFailed  MetricStatus = "failed"
)

// Terminal reports whether the status is success or failed
func (s MetricStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// OperationMetric records one timed operation within a test case
type OperationMetric struct {
	ID        string       `json:"id"`
	Operation string       `json:"operation"`
	Start     time.Time    `json:"start"`
	End       *time.Time   `json:"end,omitempty"`
	Status    MetricStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	Browser   string       `json:"browser,omitempty"`
}

// Duration returns the elapsed time of a finished metric.
// The second return value is false while the metric is still running.
func (m OperationMetric) Duration() (time.Duration, bool) {
	if m.End == nil {
		return 0, false
	}
	return m.End.Sub(m.Start), true
}

// Report aggregates the metrics of a collector
type Report struct {
	TotalOperations int               `json:"total_operations"`
	Succeeded       int               `json:"succeeded"`
	Failed          int               `json:"failed"`
	Running         int               `json:"running"`
	SuccessRate     float64           `json:"success_rate"`
	AverageDuration time.Duration     `json:"average_duration"`
	SlowThreshold   time.Duration     `json:"slow_threshold"`
	SlowOperations  []OperationMetric `json:"slow_operations,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// CaseResult represents the outcome of running a single test case
type CaseResult struct {
	Name       string        `json:"name"`
	Passed     bool          `json:"passed"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
	Screenshot string        `json:"screenshot,omitempty"`
	Driver     string        `json:"driver,omitempty"`
	Metrics    Report        `json:"metrics"`
}

// RunSummary aggregates the results of a run
type RunSummary struct {
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	PassRate  float64       `json:"pass_rate"`
	Threshold float64       `json:"threshold"`
	Duration  time.Duration `json:"duration"`
	Results   []CaseResult  `json:"results"`
}

// Summarize builds a RunSummary from case results
func Summarize(results []CaseResult, threshold float64, duration time.Duration) RunSummary {
	summary := RunSummary{
		Total:     len(results),
		Threshold: threshold,
		Duration:  duration,
		Results:   results,
	}
	for _, r := range results {
		if r.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	if summary.Total > 0 {
		summary.PassRate = float64(summary.Passed) / float64(summary.Total)
	}
	return summary
}

// ExitCode returns 0 when the pass rate meets the threshold, 1 otherwise.
// An empty run always fails.
func (s RunSummary) ExitCode() int {
	if s.Total == 0 || s.PassRate < s.Threshold {
		return 1
	}
	return 0
}
