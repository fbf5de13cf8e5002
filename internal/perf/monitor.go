// Package perf times operations against an expected duration and records
// them in a metrics collector.
package perf

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/logging"
	"github.com/williampepple1/bindup-e2e/internal/metrics"
	"github.com/williampepple1/bindup-e2e/pkg/models"
)

// Monitor wraps operations with timing
type Monitor struct {
	collector *metrics.Collector
	log       logrus.FieldLogger
	browser   string
}

// NewMonitor creates a monitor recording into collector. The browser label is
// attached to every metric it starts; empty means none.
func NewMonitor(collector *metrics.Collector, browser string, log logrus.FieldLogger) *Monitor {
	return &Monitor{
		collector: collector,
		log:       logging.OrDiscard(log).WithField("component", "performance_monitor"),
		browser:   browser,
	}
}

// Measure runs op and reports whether it took longer than expected.
// Errors from op are returned unchanged after being recorded.
func (m *Monitor) Measure(ctx context.Context, name string, expected time.Duration, op func(ctx context.Context) error) error {
	_, err := Measure(ctx, m, name, expected, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Measure is Monitor.Measure for operations returning a value
func Measure[T any](ctx context.Context, m *Monitor, name string, expected time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var startOpts []metrics.StartOption
	if m.browser != "" {
		startOpts = append(startOpts, metrics.WithBrowser(m.browser))
	}
	id := m.collector.Start(name, startOpts...)

	result, err := op(ctx)

	status := models.StatusSuccess
	if err != nil {
		status = models.StatusFailed
	}
	metric, _ := m.collector.End(id, status, err)
	duration, _ := metric.Duration()

	entry := m.log.WithFields(logrus.Fields{
		"operation": name,
		"duration":  duration,
		"expected":  expected,
	})

	if err != nil {
		entry.WithError(err).Error("Operation failed")
		return result, err
	}

	if duration > expected {
		entry.Warn("Operation slower than expected")
	} else {
		entry.WithField("status", "success").Info("Operation completed within expected time")
	}
	return result, nil
}
