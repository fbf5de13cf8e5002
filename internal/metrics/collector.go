// Package metrics records the outcome and timing of test operations.
//
// A Collector is owned by the caller (normally one per test case) and passed
// to whatever needs to record into it; there is no package-level state.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/logging"
	"github.com/williampepple1/bindup-e2e/pkg/models"
)

// Defaults for report generation
const (
	DefaultSlowThreshold = 30 * time.Second
	DefaultTopN          = 5
)

// Collector is an append-only log of OperationMetric plus report generation
type Collector struct {
	log           logrus.FieldLogger
	now           func() time.Time
	slowThreshold time.Duration
	topN          int

	mu      sync.RWMutex
	metrics []models.OperationMetric
	index   map[string]int
}

// Option configures a Collector
type Option func(*Collector)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithSlowThreshold sets the duration above which an operation is reported as slow
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.slowThreshold = d
		}
	}
}

// WithTopN sets how many slow operations a report lists
func WithTopN(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.topN = n
		}
	}
}

// NewCollector creates an empty collector
func NewCollector(log logrus.FieldLogger, opts ...Option) *Collector {
	c := &Collector{
		log:           logging.OrDiscard(log).WithField("component", "metrics_collector"),
		now:           time.Now,
		slowThreshold: DefaultSlowThreshold,
		topN:          DefaultTopN,
		metrics:       make([]models.OperationMetric, 0, 32),
		index:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartOption annotates a metric when it starts
type StartOption func(*models.OperationMetric)

// WithBrowser labels the metric with the browser it ran in
func WithBrowser(label string) StartOption {
	return func(m *models.OperationMetric) { m.Browser = label }
}

// Start records a running operation and returns its id
func (c *Collector) Start(operation string, opts ...StartOption) string {
	m := models.OperationMetric{
		ID:        uuid.NewString(),
		Operation: operation,
		Start:     c.now(),
		Status:    models.StatusRunning,
	}
	for _, opt := range opts {
		opt(&m)
	}

	c.mu.Lock()
	c.index[m.ID] = len(c.metrics)
	c.metrics = append(c.metrics, m)
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"operation": operation, "id": m.ID}).Debug("operation started")

	return m.ID
}

// End moves a running metric to a terminal status. Unknown ids, metrics that
// already ended and non-terminal statuses are ignored and report false.
func (c *Collector) End(id string, status models.MetricStatus, opErr error) (models.OperationMetric, bool) {
	if !status.Terminal() {
		return models.OperationMetric{}, false
	}

	end := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return models.OperationMetric{}, false
	}
	m := &c.metrics[i]
	if m.Status.Terminal() {
		return *m, false
	}

	if end.Before(m.Start) {
		end = m.Start
	}
	m.End = &end
	m.Status = status
	if opErr != nil {
		m.Error = opErr.Error()
	}

	d, _ := m.Duration()
	c.log.WithFields(logrus.Fields{
		"operation": m.Operation,
		"id":        m.ID,
		"status":    status,
		"duration":  d,
	}).Debug("operation ended")

	return *m, true
}

// Clear drops every recorded metric
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = c.metrics[:0]
	c.index = make(map[string]int)
}

// Metrics returns a copy of the recorded metrics in start order
func (c *Collector) Metrics() []models.OperationMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]models.OperationMetric, len(c.metrics))
	copy(result, c.metrics)
	return result
}

// Get returns the metric with the given id
func (c *Collector) Get(id string) (models.OperationMetric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return models.OperationMetric{}, false
	}
	return c.metrics[i], true
}

// Report aggregates the recorded metrics
func (c *Collector) Report() models.Report {
	metrics := c.Metrics()

	report := models.Report{
		TotalOperations: len(metrics),
		SlowThreshold:   c.slowThreshold,
		GeneratedAt:     c.now(),
	}

	var (
		total    time.Duration
		measured int
		slow     []models.OperationMetric
	)
	for _, m := range metrics {
		switch m.Status {
		case models.StatusSuccess:
			report.Succeeded++
		case models.StatusFailed:
			report.Failed++
		default:
			report.Running++
		}

		d, ok := m.Duration()
		if !ok {
			continue
		}
		total += d
		measured++
		if d > c.slowThreshold {
			slow = append(slow, m)
		}
	}

	if terminal := report.Succeeded + report.Failed; terminal > 0 {
		report.SuccessRate = float64(report.Succeeded) / float64(terminal)
	}
	if measured > 0 {
		report.AverageDuration = total / time.Duration(measured)
	}

	sort.SliceStable(slow, func(i, j int) bool {
		di, _ := slow[i].Duration()
		dj, _ := slow[j].Duration()
		return di > dj
	})
	if len(slow) > c.topN {
		slow = slow[:c.topN]
	}
	report.SlowOperations = slow

	return report
}
