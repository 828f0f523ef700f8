package mapping

import (
	"fmt"
	"strings"
)

// VirtualButton is a button, key or mouse button on the emulated output device.
type VirtualButton uint8

// Virtual buttons. Xbox buttons map onto XUSB gamepad bits; keyboard and mouse
// entries are carried for sinks that emulate those devices.
const (
	XboxDpadUp VirtualButton = iota + 1
	XboxDpadDown
	XboxDpadLeft
	XboxDpadRight
	XboxStart
	XboxBack
	XboxLeftThumb
	XboxRightThumb
	XboxLeftShoulder
	XboxRightShoulder
	XboxGuide
	XboxA
	XboxB
	XboxX
	XboxY
	KeySpace
	KeyW
	KeyA
	KeyS
	KeyD
	MouseLeftButton
	MouseRightButton
)

var virtualButtonNames = map[VirtualButton]string{
	XboxDpadUp:        "XBOX_DPAD_UP",
	XboxDpadDown:      "XBOX_DPAD_DOWN",
	XboxDpadLeft:      "XBOX_DPAD_LEFT",
	XboxDpadRight:     "XBOX_DPAD_RIGHT",
	XboxStart:         "XBOX_START",
	XboxBack:          "XBOX_BACK",
	XboxLeftThumb:     "XBOX_LEFT_THUMB",
	XboxRightThumb:    "XBOX_RIGHT_THUMB",
	XboxLeftShoulder:  "XBOX_LEFT_SHOULDER",
	XboxRightShoulder: "XBOX_RIGHT_SHOULDER",
	XboxGuide:         "XBOX_GUIDE",
	XboxA:             "XBOX_A",
	XboxB:             "XBOX_B",
	XboxX:             "XBOX_X",
	XboxY:             "XBOX_Y",
	KeySpace:          "KEY_SPACE",
	KeyW:              "KEY_W",
	KeyA:              "KEY_A",
	KeyS:              "KEY_S",
	KeyD:              "KEY_D",
	MouseLeftButton:   "MOUSE_LEFT_BUTTON",
	MouseRightButton:  "MOUSE_RIGHT_BUTTON",
}

// String returns the persisted name, e.g. "XBOX_A".
func (b VirtualButton) String() string {
	if name, ok := virtualButtonNames[b]; ok {
		return name
	}
	return fmt.Sprintf("VirtualButton(%d)", uint8(b))
}

// Valid reports whether b is a known button.
func (b VirtualButton) Valid() bool {
	_, ok := virtualButtonNames[b]
	return ok
}

// ParseVirtualButton resolves a persisted name (case-insensitive).
func ParseVirtualButton(s string) (VirtualButton, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for b, name := range virtualButtonNames {
		if name == want {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown virtual button %q", s)
}

// VirtualAxis is an analog control on the emulated output device.
type VirtualAxis uint8

// Virtual axes.
const (
	XboxLeftStickX VirtualAxis = iota + 1
	XboxLeftStickY
	XboxRightStickX
	XboxRightStickY
	XboxLeftTrigger
	XboxRightTrigger
	MouseX
	MouseY
	MouseScrollWheel
)

var virtualAxisNames = map[VirtualAxis]string{
	XboxLeftStickX:   "XBOX_LEFT_STICK_X",
	XboxLeftStickY:   "XBOX_LEFT_STICK_Y",
	XboxRightStickX:  "XBOX_RIGHT_STICK_X",
	XboxRightStickY:  "XBOX_RIGHT_STICK_Y",
	XboxLeftTrigger:  "XBOX_LEFT_TRIGGER",
	XboxRightTrigger: "XBOX_RIGHT_TRIGGER",
	MouseX:           "MOUSE_X",
	MouseY:           "MOUSE_Y",
	MouseScrollWheel: "MOUSE_SCROLL_WHEEL",
}

// String returns the persisted name, e.g. "XBOX_LEFT_TRIGGER".
func (a VirtualAxis) String() string {
	if name, ok := virtualAxisNames[a]; ok {
		return name
	}
	return fmt.Sprintf("VirtualAxis(%d)", uint8(a))
}

// Valid reports whether a is a known axis.
func (a VirtualAxis) Valid() bool {
	_, ok := virtualAxisNames[a]
	return ok
}

// ParseVirtualAxis resolves a persisted name (case-insensitive).
func ParseVirtualAxis(s string) (VirtualAxis, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for a, name := range virtualAxisNames {
		if name == want {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown virtual axis %q", s)
}
