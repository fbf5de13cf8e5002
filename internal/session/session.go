// Package session builds the per-case fixture: one page plus a fresh set of
// helpers recording into a collector owned by the case.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/browser"
	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/detector"
	"github.com/williampepple1/bindup-e2e/internal/logging"
	"github.com/williampepple1/bindup-e2e/internal/metrics"
	"github.com/williampepple1/bindup-e2e/internal/perf"
	"github.com/williampepple1/bindup-e2e/internal/retry"
	"github.com/williampepple1/bindup-e2e/internal/workflow"
	"github.com/williampepple1/bindup-e2e/pkg/models"
)

// Session is the fixture handed to a test case
type Session struct {
	Config      *config.AppConfig
	Page        browser.Page
	Driver      string
	Credentials config.Credentials
	Log         logrus.FieldLogger

	Collector *metrics.Collector
	Detector  *detector.Detector
	Executor  *retry.Executor
	Monitor   *perf.Monitor
	Steps     *workflow.Steps
}

// New opens a page on b and builds the helpers around it. Credentials are
// read from the environment here, once per case.
func New(ctx context.Context, cfg *config.AppConfig, b browser.Browser, log logrus.FieldLogger) (*Session, error) {
	log = logging.OrDiscard(log)

	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}

	collector := metrics.NewCollector(log,
		metrics.WithSlowThreshold(cfg.Metrics.SlowThreshold),
		metrics.WithTopN(cfg.Metrics.TopN),
	)
	det := detector.New(log, detector.WithCandidateTimeout(cfg.Detector.CandidateTimeout))

	return &Session{
		Config:      cfg,
		Page:        page,
		Driver:      b.Name(),
		Credentials: config.LoadCredentials(),
		Log:         log,
		Collector:   collector,
		Detector:    det,
		Executor: retry.New(retry.Config{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			BaseDelay:      cfg.Retry.BaseDelay,
			AttemptTimeout: cfg.Retry.AttemptTimeout,
		}, log),
		Monitor: perf.NewMonitor(collector, cfg.Performance.BrowserLabel, log),
		Steps:   workflow.New(det, log),
	}, nil
}

// Element returns the configured target element called name
func (s *Session) Element(name string) (config.ElementConfig, error) {
	el, ok := s.Config.Target.Elements[name]
	if !ok {
		return config.ElementConfig{}, fmt.Errorf("no element %q in target configuration", name)
	}
	if el.Description == "" {
		el.Description = name
	}
	return el, nil
}

// Find locates a configured element through its selector fallbacks
func (s *Session) Find(ctx context.Context, name string) (browser.Element, error) {
	el, err := s.Element(name)
	if err != nil {
		return nil, err
	}
	return s.Detector.FindStrings(ctx, s.Page, el.Description, el.Primary, el.Fallbacks...)
}

// Candidates returns the primary and fallback selectors of a configured element
func (s *Session) Candidates(name string) ([]string, error) {
	el, err := s.Element(name)
	if err != nil {
		return nil, err
	}
	return append([]string{el.Primary}, el.Fallbacks...), nil
}

// Measure times op with the configured expected duration
func (s *Session) Measure(ctx context.Context, name string, op func(ctx context.Context) error) error {
	return s.Monitor.Measure(ctx, name, s.Config.Performance.ExpectedDuration, op)
}

// Retry runs op through the executor
func (s *Session) Retry(ctx context.Context, description string, op func(ctx context.Context) error) error {
	return s.Executor.Run(ctx, description, op)
}

// Screenshot captures the page, bounded by timeout
func (s *Session) Screenshot(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.Page.Screenshot(ctx)
}

// Report aggregates the metrics recorded during this case
func (s *Session) Report() models.Report {
	return s.Collector.Report()
}

// Close closes the page
func (s *Session) Close() error {
	return s.Page.Close()
}
