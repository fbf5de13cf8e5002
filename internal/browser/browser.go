// Package browser exposes the page capability the test helpers drive: a small
// interface over chromedp, playwright-go or a static HTTP/goquery document.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/selector"
)

var (
	// ErrNotVisible is returned when no element matching a selector became visible in time
	ErrNotVisible = errors.New("element not visible")
	// ErrInvalidSelector is returned when the driver rejects a selector
	ErrInvalidSelector = errors.New("invalid selector")
	// ErrUnsupported is returned by drivers for operations they cannot perform
	ErrUnsupported = errors.New("operation not supported by driver")
)

// Browser creates pages
type Browser interface {
	Name() string
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab (or document)
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Locate returns the first element matching sel that is visible within timeout
	Locate(ctx context.Context, sel selector.Selector, timeout time.Duration) (Element, error)
	// LocateAll returns every element currently attached that matches sel, visible or not
	LocateAll(ctx context.Context, sel selector.Selector) ([]Element, error)
	Evaluate(ctx context.Context, expression string, out any) error
	Screenshot(ctx context.Context) ([]byte, error)
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	// ExpectPopup runs trigger and returns the page it opened
	ExpectPopup(ctx context.Context, trigger func(ctx context.Context) error) (Page, error)
	Close() error
}

// Element is a handle to a located element
type Element interface {
	Click(ctx context.Context) error
	// ForceClick dispatches a DOM click event without simulating the pointer
	ForceClick(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Text(ctx context.Context) (string, error)
	// SetFiles sets the files of a file input, as a file chooser would
	SetFiles(ctx context.Context, paths ...string) error
	// Selector returns the selector that located this element
	Selector() selector.Selector
}

// New creates the browser driver named in the configuration
func New(ctx context.Context, cfg *config.AppConfig, log logrus.FieldLogger) (Browser, error) {
	switch cfg.Browser.Driver {
	case config.DriverChromedp, "":
		b, err := NewChromeBrowser(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.DriverPlaywright:
		b, err := NewPlaywrightBrowser(cfg, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.DriverStatic:
		return NewStaticBrowser(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Browser.Driver)
	}
}

// notVisible wraps ErrNotVisible with the selector that failed
func notVisible(sel selector.Selector, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotVisible, sel, cause)
	}
	return fmt.Errorf("%w: %s", ErrNotVisible, sel)
}
