// Package workflow runs lenient UI steps. A step whose control cannot be
// found is tolerated and reported as NotFound, so callers can tell a missing
// feature apart from an action that failed.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/browser"
	"github.com/williampepple1/bindup-e2e/internal/detector"
	"github.com/williampepple1/bindup-e2e/internal/logging"
)

// Outcome is the result of a lenient step
type Outcome int

const (
	// Acted means the element was found and the action succeeded
	Acted Outcome = iota
	// NotFound means no candidate located the element; tolerated
	NotFound
	// Failed means the element was found but the action failed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Acted:
		return "acted"
	case NotFound:
		return "not_found"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes what happened in a step
type Result struct {
	Step    string
	Outcome Outcome
	Err     error
}

// Acted reports whether the step performed its action
func (r Result) Acted() bool { return r.Outcome == Acted }

// Failed reports whether the step's action failed
func (r Result) Failed() bool { return r.Outcome == Failed }

// Steps runs lenient steps with a detector
type Steps struct {
	det *detector.Detector
	log logrus.FieldLogger
}

// New creates a new step runner
func New(det *detector.Detector, log logrus.FieldLogger) *Steps {
	return &Steps{
		det: det,
		log: logging.OrDiscard(log).WithField("component", "workflow"),
	}
}

// Attempt locates the step's element through candidates and runs act on it
func (s *Steps) Attempt(ctx context.Context, page browser.Page, step string, candidates []string, act func(ctx context.Context, el browser.Element) error) Result {
	entry := s.log.WithField("step", step)

	el, err := s.find(ctx, page, step, candidates)
	if err != nil {
		if errors.Is(err, detector.ErrElementNotFound) {
			entry.Warn("Control not found, skipping step")
			return Result{Step: step, Outcome: NotFound, Err: err}
		}
		entry.WithError(err).Error("Step failed")
		return Result{Step: step, Outcome: Failed, Err: err}
	}

	if err := act(ctx, el); err != nil {
		entry.WithError(err).Error("Step failed")
		return Result{Step: step, Outcome: Failed, Err: err}
	}

	entry.Info("Step completed")
	return Result{Step: step, Outcome: Acted}
}

func (s *Steps) find(ctx context.Context, page browser.Page, step string, candidates []string) (browser.Element, error) {
	if len(candidates) == 0 {
		return nil, &detector.NotFoundError{Description: step, Tried: candidates}
	}
	return s.det.FindStrings(ctx, page, step, candidates[0], candidates[1:]...)
}

// Click clicks the first visible candidate
func (s *Steps) Click(ctx context.Context, page browser.Page, step string, candidates ...string) Result {
	return s.Attempt(ctx, page, step, candidates, func(ctx context.Context, el browser.Element) error {
		return el.Click(ctx)
	})
}

// DismissPopups clicks the first visible close control until none is left or
// maxRounds controls were clicked. It returns the number of clicks.
func (s *Steps) DismissPopups(ctx context.Context, page browser.Page, candidates []string, maxRounds int) int {
	dismissed := 0
	for round := 1; round <= maxRounds; round++ {
		if ctx.Err() != nil {
			break
		}
		el, err := s.find(ctx, page, "popup close control", candidates)
		if err != nil {
			break
		}
		if err := el.Click(ctx); err != nil {
			s.log.WithFields(logrus.Fields{
				"round":    round,
				"selector": el.Selector().String(),
			}).WithError(err).Warn("Could not dismiss popup")
			break
		}
		dismissed++
		s.log.WithFields(logrus.Fields{
			"round":    round,
			"selector": el.Selector().String(),
		}).Info("Dismissed popup")
	}
	return dismissed
}

// Upload sets files on the first attached file input among candidates. File
// inputs are usually hidden behind a styled button, so visibility is not
// required.
func (s *Steps) Upload(ctx context.Context, page browser.Page, step string, candidates []string, files ...string) Result {
	entry := s.log.WithField("step", step)

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			entry.WithError(err).Error("Upload file unavailable")
			return Result{Step: step, Outcome: Failed, Err: fmt.Errorf("upload %s: %w", f, err)}
		}
	}

	els, err := s.det.FindAllStrings(ctx, page, step, candidates...)
	if err != nil {
		entry.WithError(err).Error("Step failed")
		return Result{Step: step, Outcome: Failed, Err: err}
	}
	if len(els) == 0 {
		entry.Warn("File input not found, skipping upload")
		return Result{Step: step, Outcome: NotFound, Err: &detector.NotFoundError{Description: step, Tried: candidates}}
	}

	if err := els[0].SetFiles(ctx, files...); err != nil {
		entry.WithError(err).Error("Step failed")
		return Result{Step: step, Outcome: Failed, Err: err}
	}

	entry.WithField("files", len(files)).Info("Files uploaded")
	return Result{Step: step, Outcome: Acted}
}
