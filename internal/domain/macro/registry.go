// Package macro holds named action sequences that rules invoke through
// RunMacro actions.
package macro

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/okian/padmap/internal/domain/mapping"
)

// Macro is a named, ordered list of actions.
type Macro struct {
	Name    string
	Actions []mapping.Action
}

// Registry resolves macro names. It is safe for concurrent use; Replace swaps
// the whole set at once so a lookup never sees a half-loaded document.
type Registry struct {
	mu     sync.RWMutex
	macros map[string]Macro
}

// NewRegistry returns a registry holding macros.
func NewRegistry(macros ...Macro) (*Registry, error) {
	r := &Registry{macros: map[string]Macro{}}
	if err := r.Replace(macros); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve returns the steps of the named macro or ErrNotFound.
func (r *Registry) Resolve(_ context.Context, name string) ([]mapping.Action, error) {
	r.mu.RLock()
	m, ok := r.macros[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return m.Actions, nil
}

// Register adds or replaces one macro.
func (r *Registry) Register(m Macro) error {
	if err := validate(m); err != nil {
		return err
	}
	m.Actions = append([]mapping.Action(nil), m.Actions...)
	r.mu.Lock()
	r.macros[m.Name] = m
	r.mu.Unlock()
	return nil
}

// Replace installs macros as the complete set. On error the registry is left
// unchanged.
func (r *Registry) Replace(macros []Macro) error {
	next := make(map[string]Macro, len(macros))
	for _, m := range macros {
		if err := validate(m); err != nil {
			return err
		}
		if _, dup := next[m.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicate, m.Name)
		}
		m.Actions = append([]mapping.Action(nil), m.Actions...)
		next[m.Name] = m
	}
	r.mu.Lock()
	r.macros = next
	r.mu.Unlock()
	return nil
}

// Names returns the registered macro names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.macros))
	for name := range r.macros {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of registered macros.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.macros)
}

func validate(m Macro) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidMacro)
	}
	for i, a := range m.Actions {
		if err := mapping.ValidateAction(a); err != nil {
			return fmt.Errorf("%w: %q step %d: %w", ErrInvalidMacro, m.Name, i, err)
		}
	}
	return nil
}
