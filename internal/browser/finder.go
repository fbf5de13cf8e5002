package browser

import (
	"encoding/json"
	"fmt"

	"github.com/williampepple1/bindup-e2e/internal/selector"
)

// finderJS returns the elements matching a selector.Query. The match numbers
// mirror selector.Match.
const finderJS = `(function(q) {
	const norm = s => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const want = norm(q.text);
	const name = el => el.getAttribute('aria-label') || el.getAttribute('alt') || el.getAttribute('title') ||
		(el.tagName === 'INPUT' ? el.value : '') || el.textContent;
	const has = el => norm(el.textContent).includes(want);
	const all = Array.from(document.querySelectorAll(q.css));
	switch (q.match) {
	case 1: return all.filter(has);
	case 2: return all.filter(el => has(el) && !Array.from(el.children).some(has));
	case 3: return all.filter(el => norm(name(el)).includes(want));
	default: return all;
	}
})`

const visibleJS = `(el => {
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	return style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0' &&
		(rect.width > 0 || rect.height > 0);
})`

// invalidIndex is returned by the probe expressions when querySelectorAll
// rejects the CSS
const invalidIndex = -2

func finderCall(q selector.Query) (string, error) {
	arg, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return finderJS + "(" + string(arg) + ")", nil
}

// visibleIndexExpr evaluates to the index of the first visible match, -1 when
// none is visible, or invalidIndex
func visibleIndexExpr(q selector.Query) (string, error) {
	call, err := finderCall(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function() {
	let els;
	try { els = %s; } catch (e) { return %d; }
	return els.findIndex(%s);
})()`, call, invalidIndex, visibleJS), nil
}

// countExpr evaluates to the number of matches or invalidIndex
func countExpr(q selector.Query) (string, error) {
	call, err := finderCall(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function() {
	try { return %s.length; } catch (e) { return %d; }
})()`, call, invalidIndex), nil
}

// elementPath is a JS path addressing the i-th match, for chromedp.ByJSPath
func elementPath(q selector.Query, i int) (string, error) {
	call, err := finderCall(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s[%d]", call, i), nil
}
