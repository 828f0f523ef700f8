// Package input contains the normalized representation of a physical input
// occurrence delivered by the capture facility.
package input

import (
	"fmt"
	"strings"
	"time"
)

// DeviceID identifies the physical device that produced an event. It is
// opaque to the engine.
type DeviceID string

// Kind discriminates the payload carried by an Event.
type Kind uint8

// Event kinds.
const (
	KindButton Kind = iota + 1
	KindAxis
)

// String returns the lower-case name used in persisted documents.
func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindAxis:
		return "axis"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindButton || k == KindAxis
}

// ParseKind parses "button" or "axis" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "button":
		return KindButton, nil
	case "axis":
		return KindAxis, nil
	default:
		return 0, fmt.Errorf("%w: unknown input kind %q", ErrValidation, s)
	}
}

// ButtonID identifies a button on a physical device.
type ButtonID uint16

// AxisID identifies an axis on a physical device.
type AxisID uint16

// Payload is the kind-specific body of an Event. The set of implementations
// is closed: ButtonPayload and AxisPayload.
type Payload interface {
	Kind() Kind
	payload()
}

// ButtonPayload reports a button state change.
type ButtonPayload struct {
	ID      ButtonID
	Pressed bool
}

// Kind implements Payload.
func (ButtonPayload) Kind() Kind { return KindButton }
func (ButtonPayload) payload()   {}

// AxisPayload reports a new axis position. Values are device-normalized, for
// example -32768..32767 for sticks and 0..255 for triggers.
type AxisPayload struct {
	ID    AxisID
	Value int
}

// Kind implements Payload.
func (AxisPayload) Kind() Kind { return KindAxis }
func (AxisPayload) payload()   {}

// Event is an immutable normalized input occurrence.
type Event struct {
	device    DeviceID
	kind      Kind
	payload   Payload
	timestamp time.Time
}

// New builds an Event. A payload whose variant disagrees with kind is a
// programming error and panics with *ValidationError.
func New(device DeviceID, kind Kind, payload Payload, ts time.Time) Event {
	if err := validate(kind, payload); err != nil {
		panic(err)
	}
	return Event{device: device, kind: kind, payload: payload, timestamp: ts}
}

// Button builds a button event.
func Button(device DeviceID, id ButtonID, pressed bool, ts time.Time) Event {
	return New(device, KindButton, ButtonPayload{ID: id, Pressed: pressed}, ts)
}

// Axis builds an axis event.
func Axis(device DeviceID, id AxisID, value int, ts time.Time) Event {
	return New(device, KindAxis, AxisPayload{ID: id, Value: value}, ts)
}

func validate(kind Kind, payload Payload) error {
	if !kind.Valid() {
		return &ValidationError{Kind: kind, Reason: "unknown kind"}
	}
	if payload == nil {
		return &ValidationError{Kind: kind, Reason: "missing payload"}
	}
	if payload.Kind() != kind {
		return &ValidationError{Kind: kind, Payload: payload.Kind(), Reason: "payload variant does not match kind"}
	}
	return nil
}

// Device returns the source device.
func (e Event) Device() DeviceID { return e.device }

// Kind returns the event kind.
func (e Event) Kind() Kind { return e.kind }

// Payload returns the kind-specific payload.
func (e Event) Payload() Payload { return e.payload }

// Timestamp returns the capture time.
func (e Event) Timestamp() time.Time { return e.timestamp }

// ButtonPayload returns the button payload when e is a button event.
func (e Event) ButtonPayload() (ButtonPayload, bool) {
	p, ok := e.payload.(ButtonPayload)
	return p, ok
}

// AxisPayload returns the axis payload when e is an axis event.
func (e Event) AxisPayload() (AxisPayload, bool) {
	p, ok := e.payload.(AxisPayload)
	return p, ok
}

// String renders the event for logs.
func (e Event) String() string {
	switch p := e.payload.(type) {
	case ButtonPayload:
		return fmt.Sprintf("%s button %d pressed=%t", e.device, p.ID, p.Pressed)
	case AxisPayload:
		return fmt.Sprintf("%s axis %d value=%d", e.device, p.ID, p.Value)
	default:
		return fmt.Sprintf("%s <invalid>", e.device)
	}
}
