package selector

import (
	"strconv"
	"strings"
)

// Match is the text predicate a Query applies after the CSS match
type Match int

const (
	// MatchNone keeps every CSS match
	MatchNone Match = iota
	// MatchContains keeps elements whose text contains Query.Text
	MatchContains
	// MatchLeaf keeps the innermost elements whose text contains Query.Text
	MatchLeaf
	// MatchName keeps elements whose accessible name contains Query.Text
	MatchName
)

// Query is the driver-neutral form of a Selector: a CSS expression plus an
// optional text predicate. Drivers that cannot evaluate a Selector natively
// evaluate its Query instead.
type Query struct {
	CSS   string `json:"css"`
	Text  string `json:"text,omitempty"`
	Match Match  `json:"match"`
}

// implicit ARIA roles for common elements
var roleCSS = map[string]string{
	"button":   `button, [role="button"], input[type="button"], input[type="submit"], input[type="reset"]`,
	"link":     `a[href], [role="link"]`,
	"textbox":  `input:not([type]), input[type="text"], input[type="email"], input[type="search"], input[type="tel"], input[type="url"], textarea, [role="textbox"]`,
	"checkbox": `input[type="checkbox"], [role="checkbox"]`,
	"radio":    `input[type="radio"], [role="radio"]`,
	"heading":  `h1, h2, h3, h4, h5, h6, [role="heading"]`,
	"dialog":   `dialog, [role="dialog"], [role="alertdialog"]`,
	"img":      `img[alt], [role="img"]`,
	"combobox": `select, [role="combobox"]`,
	"list":     `ul, ol, [role="list"]`,
	"listitem": `li, [role="listitem"]`,
	"tab":      `[role="tab"]`,
	"menuitem": `[role="menuitem"]`,
}

// RoleCSS returns the CSS expression matching elements with the given ARIA role
func RoleCSS(role string) string {
	role = strings.ToLower(role)
	if css, ok := roleCSS[role]; ok {
		return css
	}
	return `[role=` + strconv.Quote(role) + `]`
}

// Query returns the driver-neutral form of the selector
func (s Selector) Query() Query {
	switch s.Kind {
	case KindText:
		return Query{CSS: "body *", Text: s.Value, Match: MatchLeaf}
	case KindTestID:
		return Query{CSS: `[data-testid=` + strconv.Quote(s.Value) + `]`}
	case KindRole:
		q := Query{CSS: RoleCSS(s.Value)}
		if s.Name != "" {
			q.Text = s.Name
			q.Match = MatchName
		}
		return q
	default:
		q := Query{CSS: s.Value}
		if s.HasText != "" {
			q.Text = s.HasText
			q.Match = MatchContains
		}
		return q
	}
}

// NormalizeText collapses whitespace and lower-cases text for matching
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// TextMatches reports whether haystack contains needle, ignoring case and
// whitespace differences
func TextMatches(haystack, needle string) bool {
	return strings.Contains(NormalizeText(haystack), NormalizeText(needle))
}
