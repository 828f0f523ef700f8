package mapping

import (
	"fmt"
	"strings"

	"github.com/okian/padmap/internal/domain/input"
)

// Rule binds a condition to an ordered list of actions. A rule without
// actions is legal and inert.
type Rule struct {
	Condition Condition
	Actions   []Action
}

// NewRule copies actions so the caller cannot mutate the rule afterwards.
func NewRule(cond Condition, actions ...Action) Rule {
	return Rule{Condition: cond, Actions: append([]Action(nil), actions...)}
}

// Matches reports whether ev triggers the rule.
func (r Rule) Matches(ev input.Event) bool {
	return r.Condition != nil && r.Condition.Matches(ev)
}

// Validate checks the condition and every action.
func (r Rule) Validate() error {
	if r.Condition == nil {
		return fmt.Errorf("%w: missing condition", ErrInvalidRule)
	}
	if !r.Condition.Kind().Valid() {
		return fmt.Errorf("%w: condition %s", ErrInvalidRule, r.Condition)
	}
	for i, a := range r.Actions {
		if err := ValidateAction(a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// Profile is a named, ordered rule set. Rule order is precedence.
type Profile struct {
	Name  string
	Rules []Rule
}

// Validate checks the name and every rule.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: profile name is empty", ErrInvalidRule)
	}
	for i, r := range p.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("profile %q rule %d: %w", p.Name, i, err)
		}
	}
	return nil
}

// CloneRules returns a copy of rules whose action slices are not shared.
func CloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = NewRule(r.Condition, r.Actions...)
	}
	return out
}
