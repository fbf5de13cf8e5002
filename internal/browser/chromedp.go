package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/fetch"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/logging"
	"github.com/williampepple1/bindup-e2e/internal/proxy"
	"github.com/williampepple1/bindup-e2e/internal/selector"
)

const pollInterval = 100 * time.Millisecond

// ChromeBrowser drives Chrome over the DevTools protocol
type ChromeBrowser struct {
	Config *config.AppConfig
	log    logrus.FieldLogger

	proxyUser, proxyPass string

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeBrowser launches Chrome, or connects to browser.remote_url when set
func NewChromeBrowser(ctx context.Context, cfg *config.AppConfig, log logrus.FieldLogger) (*ChromeBrowser, error) {
	b := &ChromeBrowser{
		Config: cfg,
		log:    logging.OrDiscard(log).WithField("driver", config.DriverChromedp),
	}

	var allocCtx context.Context
	if cfg.Browser.RemoteURL != "" {
		allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.Browser.RemoteURL)
	} else {
		// Configure browser options
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Browser.Headless),
			chromedp.UserAgent(cfg.Browser.UserAgent),
			chromedp.WindowSize(cfg.Browser.WindowWidth, cfg.Browser.WindowHeight),
		)

		server, user, pass, err := proxy.NewManager(&cfg.Proxies).Server()
		if err != nil {
			return nil, fmt.Errorf("applying proxy: %w", err)
		}
		if server != "" {
			opts = append(opts, chromedp.ProxyServer(server))
			b.proxyUser, b.proxyPass = user, pass
			b.log.WithField("proxy", server).Debug("Using proxy")
		}

		allocCtx, b.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	b.browserCtx, b.browserCancel = chromedp.NewContext(allocCtx, chromedp.WithLogf(b.log.Debugf))

	// The first Run starts the browser and must not carry a deadline
	if err := chromedp.Run(b.browserCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	return b, nil
}

// Name returns the driver name
func (b *ChromeBrowser) Name() string { return config.DriverChromedp }

// NewPage opens a new tab
func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	return b.attach(ctx, tabCtx, cancel)
}

func (b *ChromeBrowser) attach(ctx context.Context, tabCtx context.Context, cancel context.CancelFunc) (*chromePage, error) {
	p := &chromePage{
		browser: b,
		ctx:     tabCtx,
		cancel:  cancel,
		log:     b.log,
	}
	p.listen()

	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	setup := []chromedp.Action{
		chromedp.EmulateViewport(int64(b.Config.Browser.WindowWidth), int64(b.Config.Browser.WindowHeight)),
	}
	if b.proxyUser != "" {
		setup = append(setup, fetch.Enable().WithHandleAuthRequests(true))
	}
	if err := p.run(ctx, setup...); err != nil {
		cancel()
		return nil, fmt.Errorf("configuring tab: %w", err)
	}
	return p, nil
}

// Close shuts the browser down
func (b *ChromeBrowser) Close() error {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

type chromePage struct {
	browser *ChromeBrowser
	ctx     context.Context
	cancel  context.CancelFunc
	log     logrus.FieldLogger
}

// listen handles dialogs, proxy auth and console errors for the tab.
// Listeners must not block, so protocol calls run in their own goroutine.
func (p *chromePage) listen() {
	b := p.browser
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch ev := ev.(type) {
		case *cdppage.EventJavascriptDialogOpening:
			p.log.WithFields(logrus.Fields{"type": ev.Type, "message": ev.Message}).Debug("Dialog opened")
			if b.Config.Browser.AcceptDialogs {
				go p.background(cdppage.HandleJavaScriptDialog(true))
			}
		case *fetch.EventRequestPaused:
			go p.background(fetch.ContinueRequest(ev.RequestID))
		case *fetch.EventAuthRequired:
			go p.background(fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
				Response: fetch.AuthChallengeResponseResponseProvideCredentials,
				Username: b.proxyUser,
				Password: b.proxyPass,
			}))
		case *runtime.EventConsoleAPICalled:
			if ev.Type != runtime.APITypeError {
				return
			}
			args := make([]string, 0, len(ev.Args))
			for _, arg := range ev.Args {
				args = append(args, string(arg.Value))
			}
			p.log.WithField("console", strings.Join(args, " ")).Debug("Console error")
		case *runtime.EventExceptionThrown:
			if ev.ExceptionDetails != nil {
				p.log.WithField("exception", ev.ExceptionDetails.Text).Debug("Uncaught exception")
			}
		}
	})
}

func (p *chromePage) background(action chromedp.Action) {
	if err := chromedp.Run(p.ctx, action); err != nil && p.ctx.Err() == nil {
		p.log.WithError(err).Debug("Background protocol call failed")
	}
}

// run executes actions on the tab, bounded by both the tab and ctx
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

// Locate polls until a match is visible or timeout elapses
func (p *chromePage) Locate(ctx context.Context, sel selector.Selector, timeout time.Duration) (Element, error) {
	q := sel.Query()
	expr, err := visibleIndexExpr(q)
	if err != nil {
		return nil, err
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		var idx int
		lastErr = p.run(waitCtx, chromedp.Evaluate(expr, &idx))
		if lastErr == nil {
			switch {
			case idx == invalidIndex:
				return nil, fmt.Errorf("%w: %s", ErrInvalidSelector, sel)
			case idx >= 0:
				path, err := elementPath(q, idx)
				if err != nil {
					return nil, err
				}
				return &chromeElement{page: p, path: path, sel: sel}, nil
			}
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if errors.Is(lastErr, context.DeadlineExceeded) {
				lastErr = nil
			}
			return nil, notVisible(sel, lastErr)
		case <-ticker.C:
		}
	}
}

func (p *chromePage) LocateAll(ctx context.Context, sel selector.Selector) ([]Element, error) {
	q := sel.Query()
	expr, err := countExpr(q)
	if err != nil {
		return nil, err
	}

	var count int
	if err := p.run(ctx, chromedp.Evaluate(expr, &count)); err != nil {
		return nil, err
	}
	if count == invalidIndex {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSelector, sel)
	}

	elements := make([]Element, 0, count)
	for i := 0; i < count; i++ {
		path, err := elementPath(q, i)
		if err != nil {
			return nil, err
		}
		elements = append(elements, &chromeElement{page: p, path: path, sel: sel})
	}
	return elements, nil
}

func (p *chromePage) Evaluate(ctx context.Context, expression string, out any) error {
	return p.run(ctx, chromedp.Evaluate(expression, out))
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, chromedp.Location(&url))
	return url, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// ExpectPopup waits for a tab opened by this one while trigger runs
func (p *chromePage) ExpectPopup(ctx context.Context, trigger func(ctx context.Context) error) (Page, error) {
	opener := chromedp.FromContext(p.ctx).Target.TargetID
	ch := chromedp.WaitNewTarget(p.ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID == opener
	})

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	timeout := time.NewTimer(p.browser.Config.Browser.Timeout)
	defer timeout.Stop()

	select {
	case id := <-ch:
		popupCtx, cancel := chromedp.NewContext(p.ctx, chromedp.WithTargetID(id))
		return p.browser.attach(ctx, popupCtx, cancel)
	case <-timeout.C:
		return nil, errors.New("timed out waiting for popup")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

type chromeElement struct {
	page *chromePage
	path string
	sel  selector.Selector
}

func (e *chromeElement) Selector() selector.Selector { return e.sel }

func (e *chromeElement) Click(ctx context.Context) error {
	return e.page.run(ctx, chromedp.Click(e.path, chromedp.ByJSPath))
}

// ForceClick dispatches the event directly, bypassing visibility and overlays
func (e *chromeElement) ForceClick(ctx context.Context) error {
	expr := fmt.Sprintf(`(el => {
	el.dispatchEvent(new MouseEvent('click', {bubbles: true, cancelable: true, view: window}));
	return true;
})(%s)`, e.path)
	return e.page.run(ctx, chromedp.Evaluate(expr, nil))
}

func (e *chromeElement) Fill(ctx context.Context, value string) error {
	return e.page.run(ctx,
		chromedp.SetValue(e.path, "", chromedp.ByJSPath),
		chromedp.SendKeys(e.path, value, chromedp.ByJSPath),
	)
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	expr := fmt.Sprintf(`(el => (el.innerText || el.textContent || '').trim())(%s)`, e.path)
	err := e.page.run(ctx, chromedp.Evaluate(expr, &text))
	return text, err
}

func (e *chromeElement) SetFiles(ctx context.Context, paths ...string) error {
	return e.page.run(ctx, chromedp.SetUploadFiles(e.path, paths, chromedp.ByJSPath))
}
