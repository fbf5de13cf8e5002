package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/williampepple1/bindup-e2e/internal/selector"
)

// fetchFunc loads a document. A nil form means GET.
type fetchFunc func(ctx context.Context, method, target string, form url.Values) (*goquery.Document, *url.URL, error)

// DocumentPage is a Page over a parsed HTML document. It never runs
// JavaScript: links navigate, submit buttons post their form, and visibility
// is decided from the hidden attribute and inline styles.
type DocumentPage struct {
	fetch fetchFunc

	mu           sync.Mutex
	doc          *goquery.Document
	url          *url.URL
	pendingPopup *url.URL
	closed       bool
}

// NewDocumentPage creates a page from an HTML string. Navigation is not
// available on such a page unless it was opened by a StaticBrowser.
func NewDocumentPage(markup string) (*DocumentPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return &DocumentPage{doc: doc, url: &url.URL{}}, nil
}

func newFetchedPage(fetch fetchFunc) *DocumentPage {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body></body></html>"))
	return &DocumentPage{fetch: fetch, doc: doc, url: &url.URL{Scheme: "about", Opaque: "blank"}}
}

// Navigate loads target, resolved against the current URL
func (p *DocumentPage) Navigate(ctx context.Context, target string) error {
	return p.load(ctx, "GET", target, nil)
}

func (p *DocumentPage) load(ctx context.Context, method, target string, form url.Values) error {
	if p.fetch == nil {
		return fmt.Errorf("navigate: %w", ErrUnsupported)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("page closed")
	}
	resolved, err := p.url.Parse(target)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("resolving %q: %w", target, err)
	}

	doc, finalURL, err := p.fetch(ctx, method, resolved.String(), form)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.doc = doc
	p.url = finalURL
	p.mu.Unlock()
	return nil
}

// Locate returns the first visible match. The document cannot change on its
// own, so there is nothing to wait for.
func (p *DocumentPage) Locate(ctx context.Context, sel selector.Selector, _ time.Duration) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := p.match(sel)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if nodeVisible(m.Get(0)) {
			return &documentElement{page: p, sel: m, selector: sel}, nil
		}
	}
	return nil, notVisible(sel, nil)
}

// LocateAll returns every match regardless of visibility
func (p *DocumentPage) LocateAll(ctx context.Context, sel selector.Selector) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := p.match(sel)
	if err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(matches))
	for _, m := range matches {
		elements = append(elements, &documentElement{page: p, sel: m, selector: sel})
	}
	return elements, nil
}

func (p *DocumentPage) match(sel selector.Selector) ([]*goquery.Selection, error) {
	q := sel.Query()
	compiled, err := cascadia.Compile(q.CSS)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSelector, sel, err)
	}

	p.mu.Lock()
	doc := p.doc
	p.mu.Unlock()

	var matches []*goquery.Selection
	doc.FindMatcher(compiled).Each(func(_ int, s *goquery.Selection) {
		if queryTextMatches(q, s) {
			matches = append(matches, s)
		}
	})
	return matches, nil
}

func queryTextMatches(q selector.Query, s *goquery.Selection) bool {
	switch q.Match {
	case selector.MatchContains:
		return selector.TextMatches(s.Text(), q.Text)
	case selector.MatchLeaf:
		if !selector.TextMatches(s.Text(), q.Text) {
			return false
		}
		inner := false
		s.Children().EachWithBreak(func(_ int, c *goquery.Selection) bool {
			inner = selector.TextMatches(c.Text(), q.Text)
			return !inner
		})
		return !inner
	case selector.MatchName:
		return selector.TextMatches(accessibleName(s), q.Text)
	default:
		return true
	}
}

func accessibleName(s *goquery.Selection) string {
	for _, attr := range []string{"aria-label", "alt", "title"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	if goquery.NodeName(s) == "input" {
		if v, ok := s.Attr("value"); ok {
			return v
		}
	}
	return s.Text()
}

var invisibleTags = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "noscript": true, "title": true, "meta": true,
}

// nodeVisible approximates CSS visibility for a static document
func nodeVisible(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if invisibleTags[cur.Data] {
			return false
		}
		var typ string
		for _, a := range cur.Attr {
			switch a.Key {
			case "hidden":
				return false
			case "style":
				style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false
				}
			case "type":
				typ = strings.ToLower(a.Val)
			}
		}
		if cur.Data == "input" && typ == "hidden" {
			return false
		}
	}
	return true
}

// Evaluate is not available without a JavaScript engine
func (p *DocumentPage) Evaluate(context.Context, string, any) error {
	return fmt.Errorf("evaluate: %w", ErrUnsupported)
}

// Screenshot is not available without a renderer
func (p *DocumentPage) Screenshot(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("screenshot: %w", ErrUnsupported)
}

// Title returns the document title
func (p *DocumentPage) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

// URL returns the URL of the current document
func (p *DocumentPage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url.String(), nil
}

// HTML returns the current document markup
func (p *DocumentPage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

// ExpectPopup runs trigger and opens the target of the link it followed when
// that link targets a new window
func (p *DocumentPage) ExpectPopup(ctx context.Context, trigger func(ctx context.Context) error) (Page, error) {
	p.mu.Lock()
	p.pendingPopup = nil
	p.mu.Unlock()

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	popupURL := p.pendingPopup
	p.pendingPopup = nil
	p.mu.Unlock()

	if popupURL == nil {
		return nil, errors.New("trigger did not open a popup")
	}

	popup := newFetchedPage(p.fetch)
	if err := popup.Navigate(ctx, popupURL.String()); err != nil {
		return nil, err
	}
	return popup, nil
}

// Close marks the page closed
func (p *DocumentPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type documentElement struct {
	page     *DocumentPage
	sel      *goquery.Selection
	selector selector.Selector
}

func (e *documentElement) Selector() selector.Selector { return e.selector }

// Click follows links and submits forms; other elements are inert
func (e *documentElement) Click(ctx context.Context) error {
	switch {
	case goquery.NodeName(e.sel) == "a":
		href, ok := e.sel.Attr("href")
		if !ok || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return nil
		}
		if target, _ := e.sel.Attr("target"); target == "_blank" {
			return e.page.queuePopup(href)
		}
		return e.page.Navigate(ctx, href)
	case isSubmit(e.sel):
		form := e.sel.Closest("form")
		if form.Length() == 0 {
			return nil
		}
		return e.page.submit(ctx, form, e.sel)
	default:
		return nil
	}
}

// ForceClick behaves like Click; there is no pointer to bypass
func (e *documentElement) ForceClick(ctx context.Context) error {
	return e.Click(ctx)
}

// Fill sets the value of an input or textarea
func (e *documentElement) Fill(_ context.Context, value string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	switch goquery.NodeName(e.sel) {
	case "input":
		e.sel.SetAttr("value", value)
	case "textarea":
		e.sel.SetText(value)
	default:
		return fmt.Errorf("fill %s: element <%s> is not editable", e.selector, goquery.NodeName(e.sel))
	}
	return nil
}

func (e *documentElement) Text(context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return strings.TrimSpace(e.sel.Text()), nil
}

// SetFiles records the chosen file names on a file input
func (e *documentElement) SetFiles(_ context.Context, paths ...string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if typ, _ := e.sel.Attr("type"); goquery.NodeName(e.sel) != "input" || typ != "file" {
		return fmt.Errorf("set files %s: not a file input", e.selector)
	}
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}
	e.sel.SetAttr("value", strings.Join(names, ","))
	return nil
}

func isSubmit(s *goquery.Selection) bool {
	typ, hasType := s.Attr("type")
	switch goquery.NodeName(s) {
	case "button":
		return !hasType || typ == "submit"
	case "input":
		return typ == "submit" || typ == "image"
	}
	return false
}

func (p *DocumentPage) queuePopup(href string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.url.Parse(href)
	if err != nil {
		return err
	}
	p.pendingPopup = u
	return nil
}

func (p *DocumentPage) submit(ctx context.Context, form, submitter *goquery.Selection) error {
	p.mu.Lock()
	values := url.Values{}
	form.Find("input, textarea, select").Each(func(_ int, field *goquery.Selection) {
		name, ok := field.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := field.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(field) {
		case "textarea":
			values.Add(name, field.Text())
		case "select":
			opt := field.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = field.Find("option").First()
			}
			v, ok := opt.Attr("value")
			if !ok {
				v = opt.Text()
			}
			values.Add(name, v)
		default:
			typ, _ := field.Attr("type")
			switch typ {
			case "submit", "button", "image", "reset":
				return
			case "checkbox", "radio":
				if _, checked := field.Attr("checked"); !checked {
					return
				}
			}
			v, _ := field.Attr("value")
			values.Add(name, v)
		}
	})
	if name, ok := submitter.Attr("name"); ok && name != "" {
		v, _ := submitter.Attr("value")
		values.Add(name, v)
	}
	action, _ := form.Attr("action")
	method, _ := form.Attr("method")
	p.mu.Unlock()

	if strings.EqualFold(method, "post") {
		return p.load(ctx, "POST", action, values)
	}

	p.mu.Lock()
	target, err := p.url.Parse(action)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("resolving form action %q: %w", action, err)
	}
	target.RawQuery = values.Encode()
	return p.load(ctx, "GET", target.String(), nil)
}
