package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/williampepple1/bindup-e2e/internal/browser"
	"github.com/williampepple1/bindup-e2e/internal/browser/browsertest"
	"github.com/williampepple1/bindup-e2e/internal/selector"
)

func newTestDetector() (*Detector, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return New(log, WithCandidateTimeout(50*time.Millisecond)), hook
}

func messages(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		out = append(out, e.Level.String()+" "+e.Message)
	}
	return out
}

func TestFind_FallsBackInOrder(t *testing.T) {
	page, err := browser.NewDocumentPage(`<body><button id="real-button">Go</button></body>`)
	require.NoError(t, err)
	det, hook := newTestDetector()

	el, err := det.FindStrings(context.Background(), page, "go button", "#missing", "#also-missing", "#real-button")
	require.NoError(t, err)
	assert.Equal(t, "css=#real-button", el.Selector().String())

	assert.Equal(t, []string{
		"debug Element not found",
		"debug Element not found",
		"info Element found",
	}, messages(hook))
	assert.Equal(t, "#missing", hook.AllEntries()[0].Data["selector"])
	assert.Equal(t, 3, hook.LastEntry().Data["strategy"])
}

func TestFind_StopsAtFirstVisible(t *testing.T) {
	page := browsertest.NewPage()
	page.Hidden("#primary")
	page.Visible("#second")
	page.Visible("#third")
	det, _ := newTestDetector()

	el, err := det.Find(context.Background(), page, "target",
		selector.CSS("#primary"), selector.CSS("#second"), selector.CSS("#third"))
	require.NoError(t, err)
	assert.Equal(t, selector.CSS("#second"), el.Selector())
	assert.Equal(t, []string{"css=#primary", "css=#second"}, page.Lookups)
}

func TestFind_AllMissing(t *testing.T) {
	page := browsertest.NewPage()
	det, hook := newTestDetector()

	_, err := det.FindStrings(context.Background(), page, "save button", "#a", "text=Save")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElementNotFound)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "save button", nf.Description)
	assert.Equal(t, []string{"#a", "text=Save"}, nf.Tried)

	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestFind_InvalidSelectorsCountAsNotFound(t *testing.T) {
	page := browsertest.NewPage()
	page.Invalid("div[[[")
	page.Visible("#ok")
	det, hook := newTestDetector()

	el, err := det.FindStrings(context.Background(), page, "ok", "", "role=[", "div[[[", "#ok")
	require.NoError(t, err)
	assert.Equal(t, selector.CSS("#ok"), el.Selector())
	assert.Equal(t, []string{
		"debug Element not found",
		"debug Element not found",
		"debug Element not found",
		"info Element found",
	}, messages(hook))
}

func TestFind_ContextCancelled(t *testing.T) {
	page := browsertest.NewPage()
	page.Visible("#ok")
	det, _ := newTestDetector()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := det.Find(ctx, page, "ok", selector.CSS("#ok"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.Lookups)
}

func TestFind_LogsKMissesBeforeSuccess(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		k := rapid.IntRange(0, n-1).Draw(t, "k")

		page := browsertest.NewPage()
		sels := make([]selector.Selector, n)
		for i := range sels {
			sels[i] = selector.TestID("item-" + string(rune('a'+i)))
			if i >= k {
				page.Visible(sels[i].String())
			}
		}

		log, hook := test.NewNullLogger()
		log.SetLevel(logrus.DebugLevel)
		det := New(log)

		el, err := det.Find(context.Background(), page, "item", sels[0], sels[1:]...)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if el.Selector() != sels[k] {
			t.Fatalf("found %s, want %s", el.Selector(), sels[k])
		}

		entries := hook.AllEntries()
		if len(entries) != k+1 {
			t.Fatalf("got %d log entries, want %d", len(entries), k+1)
		}
		for _, e := range entries[:k] {
			if e.Level != logrus.DebugLevel || e.Message != "Element not found" {
				t.Fatalf("unexpected entry %s %q", e.Level, e.Message)
			}
		}
		if entries[k].Level != logrus.InfoLevel {
			t.Fatalf("last entry level %s, want info", entries[k].Level)
		}
	})
}

func TestFindAll_AccumulatesInCandidateOrder(t *testing.T) {
	page := browsertest.NewPage()
	page.Visible(".item")
	page.Hidden(".item")
	page.Visible(".card")
	det, _ := newTestDetector()

	els, err := det.FindAllStrings(context.Background(), page, "draggables", ".missing", ".item", "[[", ".card")
	require.NoError(t, err)
	require.Len(t, els, 3)
	assert.Equal(t, selector.CSS(".item"), els[0].Selector())
	assert.Equal(t, selector.CSS(".item"), els[1].Selector())
	assert.Equal(t, selector.CSS(".card"), els[2].Selector())

	none, err := det.FindAll(context.Background(), page, "nothing", selector.CSS(".none"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestForceClick_HiddenElement(t *testing.T) {
	page := browsertest.NewPage()
	hidden := page.Hidden("#menu-item")
	det, _ := newTestDetector()

	err := det.ForceClickStrings(context.Background(), page, "menu item", "#absent", "#menu-item")
	require.NoError(t, err)
	assert.Equal(t, 1, hidden.ForceClicks)
	assert.Equal(t, 0, hidden.Clicks)
}

func TestForceClick_Errors(t *testing.T) {
	page := browsertest.NewPage()
	broken := page.Hidden("#broken")
	broken.ClickErr = errors.New("detached")
	det, _ := newTestDetector()

	err := det.ForceClick(context.Background(), page, "broken", selector.CSS("#broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detached")
	assert.NotErrorIs(t, err, ErrElementNotFound)

	err = det.ForceClick(context.Background(), page, "absent", selector.CSS("#absent"))
	assert.ErrorIs(t, err, ErrElementNotFound)
}
