package browser

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/logging"
	"github.com/williampepple1/bindup-e2e/internal/proxy"
)

// StaticBrowser fetches pages over plain HTTP and parses them with goquery.
// Each page keeps its own cookie jar, so a login on one page does not leak
// into another.
type StaticBrowser struct {
	Config *config.AppConfig
	Proxy  *proxy.Manager
	log    logrus.FieldLogger
}

// NewStaticBrowser creates a new HTTP document browser
func NewStaticBrowser(cfg *config.AppConfig, log logrus.FieldLogger) *StaticBrowser {
	return &StaticBrowser{
		Config: cfg,
		Proxy:  proxy.NewManager(&cfg.Proxies),
		log:    logging.OrDiscard(log).WithField("driver", config.DriverStatic),
	}
}

// Name returns the driver name
func (b *StaticBrowser) Name() string { return config.DriverStatic }

// NewPage creates a page with a fresh HTTP client
func (b *StaticBrowser) NewPage(context.Context) (Page, error) {
	// Create a transport with proxy support
	transport := http.DefaultTransport.(*http.Transport).Clone()
	proxyUsed, err := b.Proxy.ApplyToTransport(transport)
	if err != nil {
		return nil, fmt.Errorf("applying proxy: %w", err)
	}
	if proxyUsed != "" {
		b.log.WithField("proxy", proxyUsed).Debug("Using proxy")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   b.Config.Browser.Timeout,
		Jar:       jar,
	}
	return newFetchedPage(b.fetcher(client)), nil
}

// Close is a no-op; pages own their clients
func (b *StaticBrowser) Close() error { return nil }

func (b *StaticBrowser) fetcher(client *http.Client) fetchFunc {
	return func(ctx context.Context, method, target string, form url.Values) (*goquery.Document, *url.URL, error) {
		var body *strings.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		} else {
			body = strings.NewReader("")
		}

		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, nil, err
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		// Set a random user agent if available
		if agents := b.Config.Browser.UserAgents; len(agents) > 0 {
			req.Header.Set("User-Agent", agents[rand.Intn(len(agents))])
		} else if b.Config.Browser.UserAgent != "" {
			req.Header.Set("User-Agent", b.Config.Browser.UserAgent)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, nil, err
		}
		defer resp.Body.Close()

		b.log.WithFields(logrus.Fields{
			"method": method,
			"url":    resp.Request.URL.Redacted(),
			"status": resp.StatusCode,
		}).Debug("Fetched document")

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, nil, fmt.Errorf("%s %s: received status code %d", method, target, resp.StatusCode)
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing %s: %w", target, err)
		}
		return doc, resp.Request.URL, nil
	}
}
