package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williampepple1/bindup-e2e/internal/selector"
)

const fixtureHTML = `<!doctype html>
<html>
<head><title> Dashboard </title><style>.x{}</style></head>
<body>
  <div id="banner" style="display: none"><button id="close-hidden">Close</button></div>
  <div hidden><a id="hidden-link" href="/nowhere">Hidden</a></div>
  <form id="login" action="/login" method="post">
    <input id="loginID" name="mailaddress" type="email">
    <input id="loginPass" name="password" type="password">
    <input type="hidden" name="csrf" value="t0k3n">
    <input id="upload" type="file" name="file">
    <textarea id="note" name="note"></textarea>
    <button id="login-btn" type="submit">ログイン</button>
  </form>
  <nav>
    <ul>
      <li><a href="/sites"><span>My Sites</span></a></li>
      <li><button aria-label="Close dialog" class="x-tool-close">×</button></li>
    </ul>
  </nav>
  <p data-testid="greeting">Hello <b>World</b></p>
  <div style="visibility:hidden"><span class="ghost">Ghost</span></div>
</body>
</html>`

func newFixturePage(t *testing.T) *DocumentPage {
	t.Helper()
	page, err := NewDocumentPage(fixtureHTML)
	require.NoError(t, err)
	return page
}

func TestDocumentPage_LocateVisibility(t *testing.T) {
	ctx := context.Background()
	page := newFixturePage(t)

	tests := []struct {
		name    string
		sel     selector.Selector
		visible bool
	}{
		{"visible input", selector.CSS("#loginID"), true},
		{"display none ancestor", selector.CSS("#close-hidden"), false},
		{"hidden attribute ancestor", selector.CSS("#hidden-link"), false},
		{"hidden input", selector.CSS(`input[name="csrf"]`), false},
		{"visibility hidden ancestor", selector.CSS(".ghost"), false},
		{"head element", selector.CSS("style"), false},
		{"missing", selector.CSS("#missing"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := page.Locate(ctx, tt.sel, 0)
			if tt.visible {
				require.NoError(t, err)
				assert.Equal(t, tt.sel, el.Selector())
				return
			}
			assert.ErrorIs(t, err, ErrNotVisible)
		})
	}
}

func TestDocumentPage_LocateByKind(t *testing.T) {
	ctx := context.Background()
	page := newFixturePage(t)

	tests := []struct {
		name string
		sel  selector.Selector
		text string
	}{
		{"text picks innermost", selector.Text("my sites"), "My Sites"},
		{"role with accessible name", selector.Role("button", "close dialog"), "×"},
		{"role with text name", selector.Role("button", "ログイン"), "ログイン"},
		{"test id", selector.TestID("greeting"), "Hello World"},
		{"css has text", selector.CSSHasText("li", "My Sites"), "My Sites"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := page.Locate(ctx, tt.sel, 0)
			require.NoError(t, err)
			text, err := el.Text(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.text, text)
		})
	}

	el, err := page.Locate(ctx, selector.Text("My Sites"), 0)
	require.NoError(t, err)
	assert.Equal(t, "span", goqueryName(el))
}

func goqueryName(el Element) string {
	return el.(*documentElement).sel.Nodes[0].Data
}

func TestDocumentPage_InvalidSelector(t *testing.T) {
	page := newFixturePage(t)

	_, err := page.Locate(context.Background(), selector.CSS("div[[["), 0)
	assert.ErrorIs(t, err, ErrInvalidSelector)

	_, err = page.LocateAll(context.Background(), selector.CSS("div[[["))
	assert.ErrorIs(t, err, ErrInvalidSelector)
}

func TestDocumentPage_LocateAllIncludesHidden(t *testing.T) {
	page := newFixturePage(t)

	all, err := page.LocateAll(context.Background(), selector.CSS("button"))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDocumentPage_CancelledContext(t *testing.T) {
	page := newFixturePage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := page.Locate(ctx, selector.CSS("#loginID"), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocumentPage_FillAndFiles(t *testing.T) {
	ctx := context.Background()
	page := newFixturePage(t)

	input, err := page.Locate(ctx, selector.CSS("#loginID"), 0)
	require.NoError(t, err)
	require.NoError(t, input.Fill(ctx, "user@example.com"))

	note, err := page.Locate(ctx, selector.CSS("#note"), 0)
	require.NoError(t, err)
	require.NoError(t, note.Fill(ctx, "hello"))
	text, err := note.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	html, err := page.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, `value="user@example.com"`)

	upload, err := page.Locate(ctx, selector.CSS("#upload"), 0)
	require.NoError(t, err)
	require.NoError(t, upload.SetFiles(ctx, "/tmp/a/site.png", "/tmp/b/logo.svg"))
	html, _ = page.HTML(ctx)
	assert.Contains(t, html, `value="site.png,logo.svg"`)

	assert.Error(t, input.SetFiles(ctx, "/tmp/x"))

	heading, err := page.Locate(ctx, selector.TestID("greeting"), 0)
	require.NoError(t, err)
	assert.Error(t, heading.Fill(ctx, "nope"))
}

func TestDocumentPage_Unsupported(t *testing.T) {
	ctx := context.Background()
	page := newFixturePage(t)

	assert.ErrorIs(t, page.Evaluate(ctx, "1+1", nil), ErrUnsupported)
	_, err := page.Screenshot(ctx)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, page.Navigate(ctx, "/sites"), ErrUnsupported)

	title, err := page.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Dashboard", title)
}

func TestNodeVisible_StyleVariants(t *testing.T) {
	page, err := NewDocumentPage(`<body>
		<p id="a" style="DISPLAY : NONE">a</p>
		<p id="b" style="color: red; visibility: hidden;">b</p>
		<p id="c" style="color: red">c</p>
	</body>`)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = page.Locate(ctx, selector.CSS("#a"), 0)
	assert.ErrorIs(t, err, ErrNotVisible)
	_, err = page.Locate(ctx, selector.CSS("#b"), 0)
	assert.ErrorIs(t, err, ErrNotVisible)
	_, err = page.Locate(ctx, selector.CSS("#c"), 0)
	assert.NoError(t, err)
}
