// Package mapping defines the declarative trigger-to-action model: conditions,
// actions, rules and profiles, plus the first-match rule matcher.
package mapping

import (
	"fmt"

	"github.com/okian/padmap/internal/domain/input"
)

// Condition selects the physical input a rule reacts to. The set of
// implementations is closed: ButtonCondition and AxisCondition, so a button id
// can never be read as an axis id.
type Condition interface {
	// Kind is the event kind this condition accepts.
	Kind() input.Kind
	// TargetID is the button or axis identifier, interpreted per Kind.
	TargetID() uint16
	// Matches reports whether ev satisfies the condition.
	Matches(ev input.Event) bool
	String() string
	condition()
}

// ButtonCondition matches any state change of one physical button.
type ButtonCondition struct {
	Button input.ButtonID
}

// OnButton returns a condition matching button id.
func OnButton(id input.ButtonID) Condition { return ButtonCondition{Button: id} }

// Kind implements Condition.
func (c ButtonCondition) Kind() input.Kind { return input.KindButton }

// TargetID implements Condition.
func (c ButtonCondition) TargetID() uint16 { return uint16(c.Button) }

// String implements Condition.
func (c ButtonCondition) String() string { return fmt.Sprintf("button/%d", c.Button) }

func (ButtonCondition) condition() {}

// Matches implements Condition.
func (c ButtonCondition) Matches(ev input.Event) bool {
	p, ok := ev.ButtonPayload()
	return ok && p.ID == c.Button
}

// AxisCondition matches any value change of one physical axis. It does not
// constrain the value; range handling belongs to the action side.
type AxisCondition struct {
	Axis input.AxisID
}

// OnAxis returns a condition matching axis id.
func OnAxis(id input.AxisID) Condition { return AxisCondition{Axis: id} }

// Kind implements Condition.
func (c AxisCondition) Kind() input.Kind { return input.KindAxis }

// TargetID implements Condition.
func (c AxisCondition) TargetID() uint16 { return uint16(c.Axis) }

// String implements Condition.
func (c AxisCondition) String() string { return fmt.Sprintf("axis/%d", c.Axis) }

func (AxisCondition) condition() {}

// Matches implements Condition.
func (c AxisCondition) Matches(ev input.Event) bool {
	p, ok := ev.AxisPayload()
	return ok && p.ID == c.Axis
}

// NewCondition builds the condition variant for kind.
func NewCondition(kind input.Kind, targetID uint16) (Condition, error) {
	switch kind {
	case input.KindButton:
		return OnButton(input.ButtonID(targetID)), nil
	case input.KindAxis:
		return OnAxis(input.AxisID(targetID)), nil
	default:
		return nil, fmt.Errorf("%w: condition kind %s", ErrInvalidRule, kind)
	}
}
