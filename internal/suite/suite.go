// Package suite holds the registry of runnable test cases.
package suite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/williampepple1/bindup-e2e/internal/session"
)

// Case is a runnable end-to-end test case
type Case struct {
	Name        string
	Description string
	Run         func(ctx context.Context, s *session.Session) error
}

// Registry holds cases by name in registration order
type Registry struct {
	cases map[string]Case
	order []string
}

// NewRegistry creates a registry holding cases
func NewRegistry(cases ...Case) (*Registry, error) {
	r := &Registry{cases: make(map[string]Case)}
	for _, c := range cases {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns the registry of built-in cases
func Default() *Registry {
	r, err := NewRegistry(HomeCase(), LoginCase())
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a case. Names must be unique and non-empty.
func (r *Registry) Register(c Case) error {
	if c.Name == "" || c.Run == nil {
		return fmt.Errorf("case needs a name and a run function")
	}
	if _, exists := r.cases[c.Name]; exists {
		return fmt.Errorf("case %q already registered", c.Name)
	}
	r.cases[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// Get returns the case called name
func (r *Registry) Get(name string) (Case, bool) {
	c, ok := r.cases[name]
	return c, ok
}

// All returns every case in registration order
func (r *Registry) All() []Case {
	out := make([]Case, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.cases[name])
	}
	return out
}

// Select returns the named cases, or every case when names is empty.
// Unknown names are reported together.
func (r *Registry) Select(names []string) ([]Case, error) {
	if len(names) == 0 {
		return r.All(), nil
	}

	var (
		out     []Case
		unknown []string
		seen    = make(map[string]bool)
	)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		c, ok := r.cases[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, c)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown cases: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
