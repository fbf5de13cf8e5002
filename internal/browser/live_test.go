package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/selector"
)

// Real browser tests run only when the corresponding variable is set, since
// they need Chrome or the playwright driver installed.
const (
	envChrome     = "BINDUP_E2E_CHROME"
	envPlaywright = "BINDUP_E2E_PLAYWRIGHT"
)

const liveHTML = `<!doctype html>
<html><head><title>Live</title></head>
<body>
  <button id="hidden" style="display:none" onclick="document.title='hidden clicked'">Hidden</button>
  <input id="name" type="text">
  <p data-testid="out">Hello <b>World</b></p>
  <a id="open" href="/popup" target="_blank">Open</a>
  <button id="confirm" onclick="document.title = confirm('sure?') ? 'yes' : 'no'">Confirm</button>
</body></html>`

func newLiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, liveHTML)
	})
	mux.HandleFunc("/popup", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Popup</title></head><body>popup</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func liveBrowser(t *testing.T, driver string) Browser {
	t.Helper()
	env := envChrome
	if driver == config.DriverPlaywright {
		env = envPlaywright
	}
	if os.Getenv(env) == "" {
		t.Skipf("set %s to run against a real browser", env)
	}

	cfg := config.CreateDefault()
	cfg.Browser.Driver = driver
	cfg.Browser.Timeout = 10 * time.Second

	b, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestLiveDrivers(t *testing.T) {
	for _, driver := range []string{config.DriverChromedp, config.DriverPlaywright} {
		t.Run(driver, func(t *testing.T) {
			b := liveBrowser(t, driver)
			srv := newLiveServer(t)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			page, err := b.NewPage(ctx)
			require.NoError(t, err)
			defer page.Close()
			require.NoError(t, page.Navigate(ctx, srv.URL))

			_, err = page.Locate(ctx, selector.CSS("#hidden"), 300*time.Millisecond)
			assert.ErrorIs(t, err, ErrNotVisible)

			all, err := page.LocateAll(ctx, selector.CSS("#hidden"))
			require.NoError(t, err)
			require.Len(t, all, 1)
			require.NoError(t, all[0].ForceClick(ctx))
			title, err := page.Title(ctx)
			require.NoError(t, err)
			assert.Equal(t, "hidden clicked", title)

			_, err = page.LocateAll(ctx, selector.CSS("div[[["))
			assert.ErrorIs(t, err, ErrInvalidSelector)

			input, err := page.Locate(ctx, selector.CSS("#name"), time.Second)
			require.NoError(t, err)
			require.NoError(t, input.Fill(ctx, "bindup"))
			var value string
			require.NoError(t, page.Evaluate(ctx, `document.querySelector('#name').value`, &value))
			assert.Equal(t, "bindup", value)

			out, err := page.Locate(ctx, selector.TestID("out"), time.Second)
			require.NoError(t, err)
			text, err := out.Text(ctx)
			require.NoError(t, err)
			assert.Equal(t, "Hello World", text)

			confirm, err := page.Locate(ctx, selector.Role("button", "Confirm"), time.Second)
			require.NoError(t, err)
			require.NoError(t, confirm.Click(ctx))
			title, _ = page.Title(ctx)
			assert.Equal(t, "yes", title)

			open, err := page.Locate(ctx, selector.Text("Open"), time.Second)
			require.NoError(t, err)
			popup, err := page.ExpectPopup(ctx, open.Click)
			require.NoError(t, err)
			defer popup.Close()
			require.Eventually(t, func() bool {
				title, _ := popup.Title(ctx)
				return title == "Popup"
			}, 5*time.Second, 100*time.Millisecond)

			shot, err := page.Screenshot(ctx)
			require.NoError(t, err)
			assert.NotEmpty(t, shot)
		})
	}
}
