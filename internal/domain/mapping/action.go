package mapping

import (
	"fmt"
	"strings"
)

// ActionKind is the persisted tag of an Action variant.
type ActionKind string

// Action kinds. Adding a variant requires a matching case in the dispatcher
// and the profile codec.
const (
	ActionSetVirtualButton ActionKind = "set_virtual_button"
	ActionSetVirtualAxis   ActionKind = "set_virtual_axis"
	ActionRunMacro         ActionKind = "run_macro"
)

// Action is one output step of a rule. Implementations: SetVirtualButton,
// SetVirtualAxis, RunMacro.
type Action interface {
	Kind() ActionKind
	String() string
	action()
}

// SetVirtualButton presses or releases a virtual button. When the triggering
// event is a button event its pressed state wins; PressedOverride applies to
// invocations without a triggering button, such as macro steps.
type SetVirtualButton struct {
	Button          VirtualButton
	PressedOverride bool
}

func (SetVirtualButton) Kind() ActionKind { return ActionSetVirtualButton }
func (SetVirtualButton) action()          {}

func (a SetVirtualButton) String() string {
	return fmt.Sprintf("%s(%s, override=%t)", ActionSetVirtualButton, a.Button, a.PressedOverride)
}

// SetVirtualAxis moves a virtual axis to Value. A UseSource value copies the
// triggering event's axis value; literals are sent verbatim.
type SetVirtualAxis struct {
	Axis  VirtualAxis
	Value AxisValue
}

func (SetVirtualAxis) Kind() ActionKind { return ActionSetVirtualAxis }
func (SetVirtualAxis) action()          {}

func (a SetVirtualAxis) String() string {
	return fmt.Sprintf("%s(%s, %s)", ActionSetVirtualAxis, a.Axis, a.Value)
}

// RunMacro runs a named macro resolved through the macro registry.
type RunMacro struct {
	Name string
}

func (RunMacro) Kind() ActionKind { return ActionRunMacro }
func (RunMacro) action()          {}

func (a RunMacro) String() string {
	return fmt.Sprintf("%s(%s)", ActionRunMacro, a.Name)
}

// AxisValue is either a literal axis value or the "use source" sentinel.
// The zero value is the literal 0.
type AxisValue struct {
	value     int
	useSource bool
}

// UseSource returns the sentinel copying the triggering event's value.
func UseSource() AxisValue { return AxisValue{useSource: true} }

// Literal returns a fixed axis value.
func Literal(v int) AxisValue { return AxisValue{value: v} }

// IsSource reports whether v is the use-source sentinel.
func (v AxisValue) IsSource() bool { return v.useSource }

// Int returns the literal value; it is 0 for the sentinel.
func (v AxisValue) Int() int { return v.value }

func (v AxisValue) String() string {
	if v.useSource {
		return "source"
	}
	return fmt.Sprintf("%d", v.value)
}

// ValidateAction checks that a is a known variant with known targets.
func ValidateAction(a Action) error {
	switch act := a.(type) {
	case SetVirtualButton:
		if !act.Button.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidRule, act)
		}
	case SetVirtualAxis:
		if !act.Axis.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidRule, act)
		}
	case RunMacro:
		if strings.TrimSpace(act.Name) == "" {
			return fmt.Errorf("%w: run_macro without a name", ErrInvalidRule)
		}
	case nil:
		return fmt.Errorf("%w: nil action", ErrInvalidRule)
	default:
		return fmt.Errorf("%w: unknown action %T", ErrInvalidRule, a)
	}
	return nil
}
