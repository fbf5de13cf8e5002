package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/selector"
)

// newLoginServer serves a login form that sets a session cookie, a dashboard
// that requires it, and a help page opened in a new window.
func newLoginServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu     sync.Mutex
		agents []string
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.UserAgent())
		mu.Unlock()

		if r.Method == http.MethodPost {
			if r.FormValue("mailaddress") == "user@example.com" && r.FormValue("password") == "pw" && r.FormValue("csrf") == "t0k3n" {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "<html><body><p class='error'>bad login</p></body></html>")
			return
		}
		fmt.Fprint(w, `<html><head><title>Login</title></head><body>
			<form action="/login" method="post">
				<input id="loginID" name="mailaddress" type="email">
				<input id="loginPass" name="password" type="password">
				<input type="hidden" name="csrf" value="t0k3n">
				<button id="login-btn">ログイン</button>
			</form>
			<a id="help" href="/help" target="_blank">Help</a>
			<a id="search" href="/search?q=sites">Search</a>
		</body></html>`)
	})
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		fmt.Fprint(w, `<html><head><title>Dashboard</title></head><body><button>BiNDupを起動</button></body></html>`)
	})
	mux.HandleFunc("/help", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Help</title></head><body></body></html>`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>%s</title></head><body></body></html>`, r.URL.Query().Get("q"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &agents
}

func newStaticTestBrowser() *StaticBrowser {
	cfg := config.CreateDefault()
	cfg.Browser.Driver = config.DriverStatic
	cfg.Browser.UserAgents = []string{"bindup-e2e-test"}
	return NewStaticBrowser(cfg, nil)
}

func TestStaticBrowser_LoginFlow(t *testing.T) {
	srv, agents := newLoginServer(t)
	ctx := context.Background()
	b := newStaticTestBrowser()
	defer b.Close()

	page, err := b.NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.Navigate(ctx, srv.URL+"/login"))

	fill := func(css, value string) {
		el, err := page.Locate(ctx, selector.CSS(css), 0)
		require.NoError(t, err)
		require.NoError(t, el.Fill(ctx, value))
	}
	fill("#loginID", "user@example.com")
	fill("#loginPass", "pw")

	submit, err := page.Locate(ctx, selector.Role("button", "ログイン"), 0)
	require.NoError(t, err)
	require.NoError(t, submit.Click(ctx))

	title, err := page.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Dashboard", title)

	url, err := page.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/dashboard", url)

	_, err = page.Locate(ctx, selector.Text("BiNDupを起動"), 0)
	assert.NoError(t, err)

	require.NotEmpty(t, *agents)
	assert.Equal(t, "bindup-e2e-test", (*agents)[0])
}

func TestStaticBrowser_PagesDoNotShareCookies(t *testing.T) {
	srv, _ := newLoginServer(t)
	ctx := context.Background()
	b := newStaticTestBrowser()

	first, err := b.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Navigate(ctx, srv.URL+"/login"))
	for css, v := range map[string]string{"#loginID": "user@example.com", "#loginPass": "pw"} {
		el, err := first.Locate(ctx, selector.CSS(css), 0)
		require.NoError(t, err)
		require.NoError(t, el.Fill(ctx, v))
	}
	btn, err := first.Locate(ctx, selector.CSS("#login-btn"), 0)
	require.NoError(t, err)
	require.NoError(t, btn.Click(ctx))

	second, err := b.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Navigate(ctx, srv.URL+"/dashboard"))
	title, err := second.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Login", title)
}

func TestStaticBrowser_FailedLoginStatus(t *testing.T) {
	srv, _ := newLoginServer(t)
	ctx := context.Background()
	page, err := newStaticTestBrowser().NewPage(ctx)
	require.NoError(t, err)

	require.NoError(t, page.Navigate(ctx, srv.URL+"/login"))
	btn, err := page.Locate(ctx, selector.CSS("#login-btn"), 0)
	require.NoError(t, err)

	err = btn.Click(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestStaticBrowser_LinksAndPopups(t *testing.T) {
	srv, _ := newLoginServer(t)
	ctx := context.Background()
	page, err := newStaticTestBrowser().NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Navigate(ctx, srv.URL+"/login"))

	help, err := page.Locate(ctx, selector.CSS("#help"), 0)
	require.NoError(t, err)
	popup, err := page.ExpectPopup(ctx, help.Click)
	require.NoError(t, err)
	title, err := popup.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Help", title)

	// the opener stays where it was
	title, _ = page.Title(ctx)
	assert.Equal(t, "Login", title)

	_, err = page.ExpectPopup(ctx, func(context.Context) error { return nil })
	assert.Error(t, err)

	search, err := page.Locate(ctx, selector.Text("Search"), 0)
	require.NoError(t, err)
	require.NoError(t, search.Click(ctx))
	title, _ = page.Title(ctx)
	assert.Equal(t, "sites", title)
}

func TestStaticBrowser_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	page, err := newStaticTestBrowser().NewPage(context.Background())
	require.NoError(t, err)
	err = page.Navigate(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNew_Static(t *testing.T) {
	cfg := config.CreateDefault()
	cfg.Browser.Driver = config.DriverStatic

	b, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, config.DriverStatic, b.Name())

	cfg.Browser.Driver = "lynx"
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
