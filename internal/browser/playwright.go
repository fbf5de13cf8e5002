package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/logging"
	"github.com/williampepple1/bindup-e2e/internal/proxy"
	"github.com/williampepple1/bindup-e2e/internal/selector"
)

// PlaywrightBrowser drives Chromium through playwright-go. Every page gets its
// own browser context, so cookies are not shared between pages.
type PlaywrightBrowser struct {
	Config  *config.AppConfig
	log     logrus.FieldLogger
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewPlaywrightBrowser starts the playwright driver and launches Chromium,
// or connects over CDP to browser.remote_url when set
func NewPlaywrightBrowser(cfg *config.AppConfig, log logrus.FieldLogger) (*PlaywrightBrowser, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	b := &PlaywrightBrowser{
		Config: cfg,
		log:    logging.OrDiscard(log).WithField("driver", config.DriverPlaywright),
		pw:     pw,
	}

	if cfg.Browser.RemoteURL != "" {
		b.browser, err = pw.Chromium.ConnectOverCDP(cfg.Browser.RemoteURL)
	} else {
		opts := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(cfg.Browser.Headless),
		}
		server, user, pass, perr := proxy.NewManager(&cfg.Proxies).Server()
		if perr != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("applying proxy: %w", perr)
		}
		if server != "" {
			opts.Proxy = &playwright.Proxy{Server: server}
			if user != "" {
				opts.Proxy.Username = playwright.String(user)
				opts.Proxy.Password = playwright.String(pass)
			}
			b.log.WithField("proxy", server).Debug("Using proxy")
		}
		b.browser, err = pw.Chromium.Launch(opts)
	}
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}
	return b, nil
}

// Name returns the driver name
func (b *PlaywrightBrowser) Name() string { return config.DriverPlaywright }

// NewPage creates a page in a fresh browser context
func (b *PlaywrightBrowser) NewPage(context.Context) (Page, error) {
	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  b.Config.Browser.WindowWidth,
			Height: b.Config.Browser.WindowHeight,
		},
	}
	if b.Config.Browser.UserAgent != "" {
		opts.UserAgent = playwright.String(b.Config.Browser.UserAgent)
	}

	bctx, err := b.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}
	timeoutMS := float64(b.Config.Browser.Timeout.Milliseconds())
	bctx.SetDefaultTimeout(timeoutMS)
	bctx.SetDefaultNavigationTimeout(timeoutMS)

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	return b.wrap(page, bctx), nil
}

func (b *PlaywrightBrowser) wrap(page playwright.Page, bctx playwright.BrowserContext) *playwrightPage {
	p := &playwrightPage{browser: b, page: page, bctx: bctx, log: b.log}

	page.OnDialog(func(dialog playwright.Dialog) {
		p.log.WithFields(logrus.Fields{"type": dialog.Type(), "message": dialog.Message()}).Debug("Dialog opened")
		if b.Config.Browser.AcceptDialogs {
			_ = dialog.Accept()
		} else {
			_ = dialog.Dismiss()
		}
	})
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		if msg.Type() == "error" {
			p.log.WithField("console", msg.Text()).Debug("Console error")
		}
	})
	return p
}

// Close closes the browser and stops the driver
func (b *PlaywrightBrowser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	if stopErr := b.pw.Stop(); err == nil {
		err = stopErr
	}
	return err
}

type playwrightPage struct {
	browser *PlaywrightBrowser
	page    playwright.Page
	// bctx is nil for popups, which share their opener's context
	bctx playwright.BrowserContext
	log  logrus.FieldLogger
}

// timeoutMS bounds d by ctx's deadline. Zero means the browser default.
func (p *playwrightPage) timeoutMS(ctx context.Context, d time.Duration) *float64 {
	if d <= 0 {
		d = p.browser.Config.Browser.Timeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// locator builds the native playwright locator for sel
func (p *playwrightPage) locator(sel selector.Selector) playwright.Locator {
	switch sel.Kind {
	case selector.KindText:
		return p.page.GetByText(sel.Value)
	case selector.KindRole:
		opts := playwright.PageGetByRoleOptions{}
		if sel.Name != "" {
			opts.Name = sel.Name
		}
		return p.page.GetByRole(playwright.AriaRole(sel.Value), opts)
	case selector.KindTestID:
		return p.page.GetByTestId(sel.Value)
	default:
		if sel.HasText != "" {
			return p.page.Locator(sel.Value, playwright.PageLocatorOptions{HasText: sel.HasText})
		}
		return p.page.Locator(sel.Value)
	}
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   p.timeoutMS(ctx, 0),
	})
	return err
}

func (p *playwrightPage) Locate(ctx context.Context, sel selector.Selector, timeout time.Duration) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := p.locator(sel)
	if _, err := base.Count(); err != nil {
		return nil, classifyPlaywrightError(sel, err)
	}

	visible := base.Locator("visible=true").First()
	err := visible.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: p.timeoutMS(ctx, timeout),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, notVisible(sel, err)
	}
	return &playwrightElement{page: p, loc: visible, sel: sel}, nil
}

func (p *playwrightPage) LocateAll(ctx context.Context, sel selector.Selector) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := p.locator(sel).All()
	if err != nil {
		return nil, classifyPlaywrightError(sel, err)
	}
	elements := make([]Element, 0, len(all))
	for _, loc := range all {
		elements = append(elements, &playwrightElement{page: p, loc: loc, sel: sel})
	}
	return elements, nil
}

func classifyPlaywrightError(sel selector.Selector, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "not a valid selector") || strings.Contains(msg, "Unexpected token") {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSelector, sel, err)
	}
	return err
}

// Evaluate runs expression and stores the JSON-compatible result in out
func (p *playwrightPage) Evaluate(ctx context.Context, expression string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := p.page.Evaluate(expression)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return assignJSON(result, out)
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  p.timeoutMS(ctx, 0),
	})
}

func (p *playwrightPage) Title(context.Context) (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) URL(context.Context) (string, error) {
	return p.page.URL(), nil
}

func (p *playwrightPage) HTML(context.Context) (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) ExpectPopup(ctx context.Context, trigger func(ctx context.Context) error) (Page, error) {
	popup, err := p.page.ExpectPopup(func() error {
		return trigger(ctx)
	}, playwright.PageExpectPopupOptions{Timeout: p.timeoutMS(ctx, 0)})
	if err != nil {
		return nil, err
	}
	return p.browser.wrap(popup, nil), nil
}

func (p *playwrightPage) Close() error {
	err := p.page.Close()
	if p.bctx != nil {
		if cerr := p.bctx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type playwrightElement struct {
	page *playwrightPage
	loc  playwright.Locator
	sel  selector.Selector
}

func (e *playwrightElement) Selector() selector.Selector { return e.sel }

func (e *playwrightElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Click(playwright.LocatorClickOptions{Timeout: e.page.timeoutMS(ctx, 0)})
}

// ForceClick dispatches a DOM click event, skipping actionability checks
func (e *playwrightElement) ForceClick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.DispatchEvent("click", nil, playwright.LocatorDispatchEventOptions{Timeout: e.page.timeoutMS(ctx, 0)})
}

func (e *playwrightElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Fill(value, playwright.LocatorFillOptions{Timeout: e.page.timeoutMS(ctx, 0)})
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: e.page.timeoutMS(ctx, 0)})
	return strings.TrimSpace(text), err
}

func (e *playwrightElement) SetFiles(ctx context.Context, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.SetInputFiles(paths, playwright.LocatorSetInputFilesOptions{Timeout: e.page.timeoutMS(ctx, 0)})
}

// assignJSON copies a decoded evaluation result into out
func assignJSON(result, out any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
