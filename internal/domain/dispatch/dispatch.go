// Package dispatch executes a matched rule's actions against the output sink.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/padmap/internal/domain/input"
	"github.com/okian/padmap/internal/domain/mapping"
	"github.com/okian/padmap/pkg/logger"
	"github.com/okian/padmap/pkg/metrics"
)

const defaultMaxMacroDepth = 4

// Sink is the emulated output device. Every call may fail; failures never
// abort the remaining actions of a rule.
type Sink interface {
	SetButton(ctx context.Context, button mapping.VirtualButton, pressed bool) error
	SetAxis(ctx context.Context, axis mapping.VirtualAxis, value int) error
}

// MacroResolver turns a macro name into its steps.
type MacroResolver interface {
	Resolve(ctx context.Context, name string) ([]mapping.Action, error)
}

// Failure describes one action that could not be issued. Index is the
// position in the rule's action list; failures inside a macro carry the index
// of the RunMacro action.
type Failure struct {
	Index  int
	Action mapping.Action
	Err    error
}

// Result summarizes one Dispatch call.
type Result struct {
	Issued   int
	Failures []Failure
}

// Dispatcher is stateless apart from its collaborators and may be shared by
// concurrent callers.
type Dispatcher struct {
	sink     Sink
	macros   MacroResolver
	maxDepth int
	log      logger.Logger
}

// New creates a dispatcher writing to sink.
func New(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{sink: sink, maxDepth: defaultMaxMacroDepth}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Get().Named("dispatch")
	}
	return d
}

// Dispatch issues actions in order for the triggering event ev. Actions issued
// before a failure are not rolled back.
func (d *Dispatcher) Dispatch(ctx context.Context, ev input.Event, actions []mapping.Action) Result {
	var res Result
	for i, a := range actions {
		d.issue(ctx, &ev, a, 0, i, &res)
	}
	return res
}

// issue runs one action. trigger is nil for macro steps, which are not driven
// by an input event.
func (d *Dispatcher) issue(ctx context.Context, trigger *input.Event, a mapping.Action, depth, index int, res *Result) {
	var err error
	switch act := a.(type) {
	case mapping.SetVirtualButton:
		err = d.setButton(ctx, trigger, act)
	case mapping.SetVirtualAxis:
		err = d.setAxis(ctx, trigger, act)
	case mapping.RunMacro:
		d.runMacro(ctx, act, depth, index, res)
		return
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}

	if err != nil {
		d.fail(ctx, a, index, err, res)
		return
	}
	res.Issued++
	metrics.RecordActionDispatched(string(a.Kind()))
}

func (d *Dispatcher) setButton(ctx context.Context, trigger *input.Event, act mapping.SetVirtualButton) error {
	pressed := act.PressedOverride
	if trigger != nil {
		p, ok := trigger.ButtonPayload()
		if !ok {
			return fmt.Errorf("%w: %s needs a button event, got %s", ErrSourceMismatch, act.Button, trigger.Kind())
		}
		pressed = p.Pressed
	}
	if err := d.sink.SetButton(ctx, act.Button, pressed); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrSinkFailure, act.Button, err)
	}
	return nil
}

func (d *Dispatcher) setAxis(ctx context.Context, trigger *input.Event, act mapping.SetVirtualAxis) error {
	value := act.Value.Int()
	if act.Value.IsSource() {
		if trigger == nil {
			return fmt.Errorf("%w: %s uses the source value outside an input event", ErrSourceMismatch, act.Axis)
		}
		p, ok := trigger.AxisPayload()
		if !ok {
			return fmt.Errorf("%w: %s needs an axis event, got %s", ErrSourceMismatch, act.Axis, trigger.Kind())
		}
		value = p.Value
	}
	if err := d.sink.SetAxis(ctx, act.Axis, value); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrSinkFailure, act.Axis, err)
	}
	return nil
}

func (d *Dispatcher) runMacro(ctx context.Context, act mapping.RunMacro, depth, index int, res *Result) {
	if depth >= d.maxDepth {
		d.fail(ctx, act, index, fmt.Errorf("%w: %q at depth %d", ErrMacroDepth, act.Name, depth), res)
		return
	}
	if d.macros == nil {
		d.fail(ctx, act, index, fmt.Errorf("%w: %q: no macro registry", ErrMacroUnresolved, act.Name), res)
		return
	}
	steps, err := d.macros.Resolve(ctx, act.Name)
	if err != nil {
		d.fail(ctx, act, index, fmt.Errorf("%w: %w", ErrMacroUnresolved, err), res)
		return
	}
	metrics.RecordActionDispatched(string(act.Kind()))
	for _, step := range steps {
		d.issue(ctx, nil, step, depth+1, index, res)
	}
}

func (d *Dispatcher) fail(ctx context.Context, a mapping.Action, index int, err error, res *Result) {
	res.Failures = append(res.Failures, Failure{Index: index, Action: a, Err: err})

	reason := failureReason(err)
	if reason == "sink" {
		metrics.RecordSinkFailure()
	}
	kind := "unknown"
	if a != nil {
		kind = string(a.Kind())
	}
	metrics.RecordActionFailure(kind, reason)
	d.log.Warn(ctx, "action failed",
		logger.Int("index", index),
		logger.String("action", kind),
		logger.String("reason", reason),
		logger.Error(err),
	)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSinkFailure):
		return "sink"
	case errors.Is(err, ErrSourceMismatch):
		return "source_mismatch"
	case errors.Is(err, ErrMacroDepth):
		return "macro_depth"
	case errors.Is(err, ErrMacroUnresolved):
		return "macro_unresolved"
	default:
		return "unknown_action"
	}
}
