// Package selector describes UI element selectors as a tagged variant
// ({css, text, role, testId}) instead of free-form strings evaluated at runtime.
package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies how a Selector locates elements
type Kind int

const (
	KindCSS Kind = iota
	KindText
	KindRole
	KindTestID
)

func (k Kind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindText:
		return "text"
	case KindRole:
		return "role"
	case KindTestID:
		return "testid"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ErrInvalid is returned by Parse for selectors that cannot be interpreted
var ErrInvalid = errors.New("invalid selector")

// Selector locates one or more elements on a page.
//
// Value holds the CSS expression, the text, the ARIA role or the test id
// depending on Kind. Name is the accessible name filter of a role selector
// and HasText is the text filter of a CSS selector.
type Selector struct {
	Kind    Kind
	Value   string
	Name    string
	HasText string
}

// CSS returns a CSS selector
func CSS(expr string) Selector {
	return Selector{Kind: KindCSS, Value: expr}
}

// CSSHasText returns a CSS selector restricted to elements containing text
func CSSHasText(expr, text string) Selector {
	return Selector{Kind: KindCSS, Value: expr, HasText: text}
}

// Text returns a selector matching the innermost elements containing text
func Text(text string) Selector {
	return Selector{Kind: KindText, Value: text}
}

// Role returns an ARIA role selector, optionally filtered by accessible name
func Role(role, name string) Selector {
	return Selector{Kind: KindRole, Value: strings.ToLower(role), Name: name}
}

// TestID returns a selector matching the data-testid attribute
func TestID(id string) Selector {
	return Selector{Kind: KindTestID, Value: id}
}

var (
	hasTextPattern = regexp.MustCompile(`^(.*):has-text\((?:"([^"]*)"|'([^']*)')\)$`)
	rolePattern    = regexp.MustCompile(`^([a-zA-Z]+)(?:\[name=(?:"([^"]*)"|'([^']*)')\])?$`)
)

// Parse converts the string form of a selector into a Selector.
//
// Accepted forms:
//
//	css=<expr>          text=<text>          testid=<id>
//	role=<role>         role=<role>[name="<name>"]
//	<expr>:has-text("<text>")
//
// Anything without a recognised prefix is treated as CSS.
func Parse(raw string) (Selector, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Selector{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	prefix, rest, ok := strings.Cut(s, "=")
	if ok {
		switch strings.ToLower(prefix) {
		case "css":
			return parseCSS(rest)
		case "text":
			text := unquote(strings.TrimSpace(rest))
			if text == "" {
				return Selector{}, fmt.Errorf("%w: empty text in %q", ErrInvalid, raw)
			}
			return Text(text), nil
		case "testid", "data-testid":
			id := unquote(strings.TrimSpace(rest))
			if id == "" {
				return Selector{}, fmt.Errorf("%w: empty test id in %q", ErrInvalid, raw)
			}
			return TestID(id), nil
		case "role":
			m := rolePattern.FindStringSubmatch(strings.TrimSpace(rest))
			if m == nil {
				return Selector{}, fmt.Errorf("%w: malformed role selector %q", ErrInvalid, raw)
			}
			return Role(m[1], m[2]+m[3]), nil
		}
	}

	return parseCSS(s)
}

func parseCSS(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if m := hasTextPattern.FindStringSubmatch(expr); m != nil {
		base := strings.TrimSpace(m[1])
		if base == "" {
			base = "*"
		}
		return CSSHasText(base, m[2]+m[3]), nil
	}
	if expr == "" {
		return Selector{}, fmt.Errorf("%w: empty css", ErrInvalid)
	}
	return CSS(expr), nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ParseAll parses every raw selector, returning the valid ones in order and
// the errors for the rest
func ParseAll(raw ...string) ([]Selector, []error) {
	sels := make([]Selector, 0, len(raw))
	var errs []error
	for _, r := range raw {
		sel, err := Parse(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sels = append(sels, sel)
	}
	return sels, errs
}

// String returns the canonical form accepted by Parse
func (s Selector) String() string {
	switch s.Kind {
	case KindText:
		return "text=" + s.Value
	case KindTestID:
		return "testid=" + s.Value
	case KindRole:
		if s.Name != "" {
			return fmt.Sprintf("role=%s[name=%q]", s.Value, s.Name)
		}
		return "role=" + s.Value
	default:
		if s.HasText != "" {
			return fmt.Sprintf("%s:has-text(%q)", s.Value, s.HasText)
		}
		return "css=" + s.Value
	}
}
