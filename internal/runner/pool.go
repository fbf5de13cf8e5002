// Package runner executes test cases on a pool of workers and summarises
// the results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/williampepple1/bindup-e2e/internal/browser"
	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/logging"
	"github.com/williampepple1/bindup-e2e/internal/session"
	"github.com/williampepple1/bindup-e2e/internal/suite"
	"github.com/williampepple1/bindup-e2e/pkg/models"
)

// screenshotTimeout bounds the failure screenshot, which runs after the case
// context may already have expired
const screenshotTimeout = 10 * time.Second

// Pool manages a pool of worker goroutines sharing one browser
type Pool struct {
	Config  *config.AppConfig
	Browser browser.Browser
	log     logrus.FieldLogger
	limiter *rate.Limiter
}

type job struct {
	index int
	c     suite.Case
}

type indexedResult struct {
	index  int
	result models.CaseResult
}

// NewPool creates a new worker pool. Case starts are spaced by
// runner.rate_limit across all workers.
func NewPool(cfg *config.AppConfig, b browser.Browser, log logrus.FieldLogger) *Pool {
	limit := rate.Inf
	if cfg.Runner.RateLimit > 0 {
		limit = rate.Every(cfg.Runner.RateLimit)
	}
	return &Pool{
		Config:  cfg,
		Browser: b,
		log:     logging.OrDiscard(log).WithField("component", "runner"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run executes cases and returns their summary in case order. The error is
// non-nil only when ctx ended before every case ran; the summary then covers
// the cases that did.
func (p *Pool) Run(ctx context.Context, cases []suite.Case) (models.RunSummary, error) {
	start := time.Now()

	jobs := make(chan job, len(cases))
	results := make(chan indexedResult, len(cases))
	for i, c := range cases {
		jobs <- job{index: i, c: c}
	}
	close(jobs) // Close the jobs channel to signal workers that no more jobs are coming

	workers := p.Config.Runner.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(cases) && len(cases) > 0 {
		workers = len(cases)
	}

	p.log.WithFields(logrus.Fields{
		"cases":   len(cases),
		"workers": workers,
		"driver":  p.Browser.Name(),
	}).Info("Starting run")

	g, gctx := errgroup.WithContext(ctx)
	for w := 1; w <= workers; w++ {
		id := w
		g.Go(func() error {
			return p.worker(gctx, id, jobs, results)
		})
	}
	err := g.Wait()
	close(results)

	collected := make([]indexedResult, 0, len(cases))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	caseResults := make([]models.CaseResult, len(collected))
	for i, r := range collected {
		caseResults[i] = r.result
	}

	summary := models.Summarize(caseResults, p.Config.Runner.PassThreshold, time.Since(start))
	return summary, err
}

// worker processes cases from the jobs channel and sends results to the results channel
func (p *Pool) worker(ctx context.Context, id int, jobs <-chan job, results chan<- indexedResult) error {
	for j := range jobs {
		// Wait for rate limiter
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		p.log.WithFields(logrus.Fields{"worker": id, "case": j.c.Name}).Info("Worker processing case")
		results <- indexedResult{index: j.index, result: p.runCase(ctx, id, j.c)}
	}
	return nil
}

func (p *Pool) runCase(ctx context.Context, worker int, c suite.Case) models.CaseResult {
	started := time.Now()
	result := models.CaseResult{
		Name:      c.Name,
		Driver:    p.Browser.Name(),
		Timestamp: started,
	}
	log := p.log.WithFields(logrus.Fields{"worker": worker, "case": c.Name})

	caseCtx := ctx
	if timeout := p.Config.Runner.CaseTimeout; timeout > 0 {
		var cancel context.CancelFunc
		caseCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s, err := session.New(caseCtx, p.Config, p.Browser, log)
	if err != nil {
		result.Err = err.Error()
		result.Duration = time.Since(started)
		log.WithError(err).Error("Case failed")
		return result
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Debug("Closing page failed")
		}
	}()

	err = runProtected(caseCtx, c, s)
	result.Duration = time.Since(started)
	result.Metrics = s.Report()

	if err != nil {
		result.Err = err.Error()
		result.Screenshot = p.saveScreenshot(ctx, s, c.Name, log)
		log.WithError(err).WithField("duration", result.Duration).Error("Case failed")
		return result
	}

	result.Passed = true
	log.WithField("duration", result.Duration).Info("Case passed")
	return result
}

// runProtected turns a panicking case into a failed one
func runProtected(ctx context.Context, c suite.Case, s *session.Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("case panicked: %v", r)
		}
	}()
	return c.Run(ctx, s)
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// saveScreenshot writes a failure screenshot and returns its path, or "" when
// the driver cannot take one
func (p *Pool) saveScreenshot(ctx context.Context, s *session.Session, name string, log logrus.FieldLogger) string {
	dir := p.Config.IO.ScreenshotDir
	if dir == "" {
		return ""
	}

	data, err := s.Screenshot(context.WithoutCancel(ctx), screenshotTimeout)
	if err != nil {
		if !errors.Is(err, browser.ErrUnsupported) {
			log.WithError(err).Warn("Error capturing screenshot")
		}
		return ""
	}

	// Create screenshot directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.WithError(err).Warn("Error creating screenshot directory")
		return ""
	}

	filename := fmt.Sprintf("%s-%d.png", unsafeFileChars.ReplaceAllString(name, "_"), time.Now().UnixNano())
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.WithError(err).Warn("Error saving screenshot")
		return ""
	}
	log.WithField("path", path).Info("Saved failure screenshot")
	return path
}
