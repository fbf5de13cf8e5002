// Package detector resolves UI elements through an ordered list of selector
// strategies. The first strategy whose element becomes visible wins; the
// rest are never tried.
package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/browser"
	"github.com/williampepple1/bindup-e2e/internal/logging"
	"github.com/williampepple1/bindup-e2e/internal/selector"
)

// DefaultCandidateTimeout is how long each strategy may take to become visible
const DefaultCandidateTimeout = 2 * time.Second

// ErrElementNotFound is matched by every NotFoundError
var ErrElementNotFound = errors.New("element not found")

// NotFoundError is returned when no strategy located the element
type NotFoundError struct {
	Description string
	Tried       []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s (tried %s)", e.Description, strings.Join(e.Tried, ", "))
}

// Is makes errors.Is(err, ErrElementNotFound) hold
func (e *NotFoundError) Is(target error) bool {
	return target == ErrElementNotFound
}

// Detector finds elements on a page
type Detector struct {
	log     logrus.FieldLogger
	timeout time.Duration
}

// Option configures a Detector
type Option func(*Detector)

// WithCandidateTimeout sets the per-strategy visibility timeout
func WithCandidateTimeout(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.timeout = d
		}
	}
}

// New creates a new detector
func New(log logrus.FieldLogger, opts ...Option) *Detector {
	d := &Detector{
		log:     logging.OrDiscard(log).WithField("component", "element_detector"),
		timeout: DefaultCandidateTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// candidate is a strategy that may have failed to parse
type candidate struct {
	raw string
	sel selector.Selector
	err error
}

func fromSelectors(sels []selector.Selector) []candidate {
	out := make([]candidate, len(sels))
	for i, sel := range sels {
		out[i] = candidate{raw: sel.String(), sel: sel}
	}
	return out
}

func fromStrings(raw []string) []candidate {
	out := make([]candidate, len(raw))
	for i, r := range raw {
		sel, err := selector.Parse(r)
		out[i] = candidate{raw: r, sel: sel, err: err}
	}
	return out
}

// Find returns the first of primary and fallbacks, in that order, that
// becomes visible within the candidate timeout
func (d *Detector) Find(ctx context.Context, page browser.Page, description string, primary selector.Selector, fallbacks ...selector.Selector) (browser.Element, error) {
	return d.find(ctx, page, description, fromSelectors(append([]selector.Selector{primary}, fallbacks...)))
}

// FindStrings is Find for selectors in string form. Strings that do not
// parse count as not found.
func (d *Detector) FindStrings(ctx context.Context, page browser.Page, description, primary string, fallbacks ...string) (browser.Element, error) {
	return d.find(ctx, page, description, fromStrings(append([]string{primary}, fallbacks...)))
}

func (d *Detector) find(ctx context.Context, page browser.Page, description string, candidates []candidate) (browser.Element, error) {
	tried := make([]string, 0, len(candidates))

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := d.log.WithFields(logrus.Fields{
			"element":  description,
			"strategy": i + 1,
			"selector": c.raw,
		})
		tried = append(tried, c.raw)

		if c.err != nil {
			entry.WithError(c.err).Debug("Element not found")
			continue
		}

		el, err := page.Locate(ctx, c.sel, d.timeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			entry.WithError(err).Debug("Element not found")
			continue
		}

		entry.Info("Element found")
		return el, nil
	}

	d.log.WithFields(logrus.Fields{
		"element":    description,
		"strategies": len(candidates),
	}).Warn("No strategy located element")
	return nil, &NotFoundError{Description: description, Tried: tried}
}

// FindAll returns every attached element matching any candidate, in
// candidate order. Finding nothing is not an error.
func (d *Detector) FindAll(ctx context.Context, page browser.Page, description string, candidates ...selector.Selector) ([]browser.Element, error) {
	return d.findAll(ctx, page, description, fromSelectors(candidates))
}

// FindAllStrings is FindAll for selectors in string form
func (d *Detector) FindAllStrings(ctx context.Context, page browser.Page, description string, candidates ...string) ([]browser.Element, error) {
	return d.findAll(ctx, page, description, fromStrings(candidates))
}

func (d *Detector) findAll(ctx context.Context, page browser.Page, description string, candidates []candidate) ([]browser.Element, error) {
	var found []browser.Element

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := d.log.WithFields(logrus.Fields{"element": description, "selector": c.raw})
		if c.err != nil {
			entry.WithError(c.err).Debug("Element not found")
			continue
		}

		els, err := page.LocateAll(ctx, c.sel)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			entry.WithError(err).Debug("Element not found")
			continue
		}
		entry.WithField("count", len(els)).Debug("Elements matched")
		found = append(found, els...)
	}

	d.log.WithFields(logrus.Fields{"element": description, "count": len(found)}).Info("Elements collected")
	return found, nil
}

// ForceClick dispatches a click event on the first attached element matching
// a candidate, visible or not
func (d *Detector) ForceClick(ctx context.Context, page browser.Page, description string, candidates ...selector.Selector) error {
	return d.forceClick(ctx, page, description, fromSelectors(candidates))
}

// ForceClickStrings is ForceClick for selectors in string form
func (d *Detector) ForceClickStrings(ctx context.Context, page browser.Page, description string, candidates ...string) error {
	return d.forceClick(ctx, page, description, fromStrings(candidates))
}

func (d *Detector) forceClick(ctx context.Context, page browser.Page, description string, candidates []candidate) error {
	tried := make([]string, 0, len(candidates))
	var lastErr error

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		tried = append(tried, c.raw)
		entry := d.log.WithFields(logrus.Fields{"element": description, "selector": c.raw})
		if c.err != nil {
			entry.WithError(c.err).Debug("Element not found")
			continue
		}

		els, err := page.LocateAll(ctx, c.sel)
		if err != nil || len(els) == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Debug("Element not found")
			continue
		}

		if err := els[0].ForceClick(ctx); err != nil {
			entry.WithError(err).Warn("Force click failed")
			lastErr = err
			continue
		}
		entry.Info("Force clicked element")
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("force click %s: %w", description, lastErr)
	}
	return &NotFoundError{Description: description, Tried: tried}
}
