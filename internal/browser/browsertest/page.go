// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/williampepple1/bindup-e2e/internal/browser"
	"github.com/williampepple1/bindup-e2e/internal/selector"
)

// Element is a scripted element. Fields may be changed between calls while
// the page lock is not held, e.g. from OnClick.
type Element struct {
	Visible   bool
	TextValue string
	// ClickErr is returned by Click and ForceClick when set
	ClickErr error
	// OnClick runs after a successful Click or ForceClick
	OnClick func()

	Value       string
	Files       []string
	Clicks      int
	ForceClicks int

	sel  selector.Selector
	page *Page
}

// Page is a browser.Page whose elements are registered by selector string
type Page struct {
	mu       sync.Mutex
	elements map[string][]*Element
	invalid  map[string]bool

	// TitleValue and URLValue are returned by Title and URL
	TitleValue string
	URLValue   string
	// NavigateErr is returned by Navigate when set
	NavigateErr error
	// ScreenshotData is returned by Screenshot; nil means unsupported
	ScreenshotData []byte
	// PopupPage is returned by ExpectPopup after the trigger succeeds
	PopupPage *Page

	// Navigations lists every URL passed to Navigate
	Navigations []string
	// Lookups lists the selectors passed to Locate, in order
	Lookups []string
	Closed  bool
}

var _ browser.Page = (*Page)(nil)

// NewPage creates an empty page
func NewPage() *Page {
	return &Page{
		elements: make(map[string][]*Element),
		invalid:  make(map[string]bool),
	}
}

// Add registers el as a match for raw, which must parse as a selector
func (p *Page) Add(raw string, el *Element) *Element {
	sel, err := selector.Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("browsertest: %v", err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el.sel = sel
	el.page = p
	p.elements[sel.String()] = append(p.elements[sel.String()], el)
	return el
}

// Visible registers a visible element for raw
func (p *Page) Visible(raw string) *Element {
	return p.Add(raw, &Element{Visible: true})
}

// Hidden registers an attached but invisible element for raw
func (p *Page) Hidden(raw string) *Element {
	return p.Add(raw, &Element{})
}

// Invalid makes the page reject raw as a selector
func (p *Page) Invalid(raw string) {
	sel, err := selector.Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("browsertest: %v", err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalid[sel.String()] = true
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.URLValue = url
	return nil
}

func (p *Page) Locate(ctx context.Context, sel selector.Selector, _ time.Duration) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Lookups = append(p.Lookups, sel.String())
	if p.invalid[sel.String()] {
		return nil, fmt.Errorf("%w: %s", browser.ErrInvalidSelector, sel)
	}
	for _, el := range p.elements[sel.String()] {
		if el.Visible {
			return &handle{el: el, sel: sel}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", browser.ErrNotVisible, sel)
}

func (p *Page) LocateAll(ctx context.Context, sel selector.Selector) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.invalid[sel.String()] {
		return nil, fmt.Errorf("%w: %s", browser.ErrInvalidSelector, sel)
	}
	var out []browser.Element
	for _, el := range p.elements[sel.String()] {
		out = append(out, &handle{el: el, sel: sel})
	}
	return out, nil
}

func (p *Page) Evaluate(context.Context, string, any) error {
	return browser.ErrUnsupported
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotData == nil {
		return nil, browser.ErrUnsupported
	}
	return p.ScreenshotData, nil
}

func (p *Page) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.TitleValue, nil
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URLValue, nil
}

func (p *Page) HTML(context.Context) (string, error) {
	return "<html></html>", nil
}

func (p *Page) ExpectPopup(ctx context.Context, trigger func(ctx context.Context) error) (browser.Page, error) {
	if err := trigger(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PopupPage == nil {
		return nil, errors.New("no popup opened")
	}
	return p.PopupPage, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

type handle struct {
	el  *Element
	sel selector.Selector
}

func (h *handle) Selector() selector.Selector { return h.sel }

func (h *handle) click(ctx context.Context, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := h.el.page
	p.mu.Lock()
	if h.el.ClickErr != nil {
		err := h.el.ClickErr
		p.mu.Unlock()
		return err
	}
	if force {
		h.el.ForceClicks++
	} else {
		h.el.Clicks++
	}
	onClick := h.el.OnClick
	p.mu.Unlock()

	if onClick != nil {
		onClick()
	}
	return nil
}

func (h *handle) Click(ctx context.Context) error      { return h.click(ctx, false) }
func (h *handle) ForceClick(ctx context.Context) error { return h.click(ctx, true) }

func (h *handle) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.el.page.mu.Lock()
	defer h.el.page.mu.Unlock()
	h.el.Value = value
	return nil
}

func (h *handle) Text(context.Context) (string, error) {
	h.el.page.mu.Lock()
	defer h.el.page.mu.Unlock()
	return h.el.TextValue, nil
}

func (h *handle) SetFiles(ctx context.Context, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.el.page.mu.Lock()
	defer h.el.page.mu.Unlock()
	h.el.Files = append([]string(nil), paths...)
	return nil
}

// Browser hands out pages from a factory
type Browser struct {
	NewPageFunc func() *Page

	mu     sync.Mutex
	Pages  []*Page
	Closed bool
}

var _ browser.Browser = (*Browser)(nil)

func (b *Browser) Name() string { return "fake" }

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page := NewPage()
	if b.NewPageFunc != nil {
		page = b.NewPageFunc()
	}
	b.mu.Lock()
	b.Pages = append(b.Pages, page)
	b.mu.Unlock()
	return page, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}
