// Package pad is the emulated output device. It keeps the virtual control
// state that rules drive and notifies subscribers of every change.
package pad

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/padmap/internal/domain/mapping"
	"github.com/okian/padmap/pkg/logger"
)

// Ranges of the XUSB report fields.
const (
	stickMin   = -32768
	stickMax   = 32767
	triggerMin = 0
	triggerMax = 255
)

// Change is one applied update.
type Change struct {
	Seq     uint64    `json:"seq"`
	Kind    string    `json:"kind"`
	Target  string    `json:"target"`
	Pressed bool      `json:"pressed"`
	Value   int       `json:"value"`
	At      time.Time `json:"at"`
}

// State is a copy of the pad's controls.
type State struct {
	Name        string          `json:"name"`
	Session     string          `json:"session,omitempty"`
	Initialized bool            `json:"initialized"`
	Seq         uint64          `json:"seq"`
	Buttons     map[string]bool `json:"buttons"`
	Axes        map[string]int  `json:"axes"`
}

// Pad serializes updates from every lane so the emulated device sees one
// ordered stream.
type Pad struct {
	name string
	log  logger.Logger
	now  func() time.Time

	mu          sync.Mutex
	initialized bool
	session     string
	seq         uint64
	buttons     map[mapping.VirtualButton]bool
	axes        map[mapping.VirtualAxis]int
	subscribers []func(Change)
}

// New creates a pad that must be initialized before use.
func New(name string, opts ...Option) *Pad {
	p := &Pad{
		name:    name,
		now:     time.Now,
		buttons: map[mapping.VirtualButton]bool{},
		axes:    map[mapping.VirtualAxis]int{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("pad")
	}
	return p
}

// Initialize opens a new session with every control released and centered.
// Initializing an open pad is a no-op.
func (p *Pad) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	p.initialized = true
	p.session = uuid.NewString()
	p.buttons = map[mapping.VirtualButton]bool{}
	p.axes = map[mapping.VirtualAxis]int{}
	p.log.Info(ctx, "virtual pad initialized", logger.String("name", p.name), logger.String("session", p.session))
	return nil
}

// Shutdown closes the session. Later updates fail with ErrNotInitialized.
func (p *Pad) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotInitialized
	}
	p.initialized = false
	p.log.Info(ctx, "virtual pad shut down", logger.String("session", p.session), logger.Uint64("updates", p.seq))
	p.session = ""
	return nil
}

// SetButton presses or releases b.
func (p *Pad) SetButton(_ context.Context, b mapping.VirtualButton, pressed bool) error {
	if !b.Valid() {
		return fmt.Errorf("%w: button %s", ErrUnsupported, b)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotInitialized
	}
	if p.buttons[b] == pressed {
		return nil
	}
	p.buttons[b] = pressed
	p.emit(Change{Kind: "button", Target: b.String(), Pressed: pressed})
	return nil
}

// SetAxis moves a to value. Xbox sticks and triggers reject values outside
// their report range; mouse axes accept any relative value.
func (p *Pad) SetAxis(_ context.Context, a mapping.VirtualAxis, value int) error {
	if !a.Valid() {
		return fmt.Errorf("%w: axis %s", ErrUnsupported, a)
	}
	if err := checkRange(a, value); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotInitialized
	}
	if cur, ok := p.axes[a]; ok && cur == value {
		return nil
	}
	p.axes[a] = value
	p.emit(Change{Kind: "axis", Target: a.String(), Value: value})
	return nil
}

// Subscribe registers fn for every applied change. fn runs with the pad
// locked and must not block or call back into the pad.
func (p *Pad) Subscribe(fn func(Change)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Snapshot returns the current state.
func (p *Pad) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := State{
		Name:        p.name,
		Session:     p.session,
		Initialized: p.initialized,
		Seq:         p.seq,
		Buttons:     make(map[string]bool, len(p.buttons)),
		Axes:        make(map[string]int, len(p.axes)),
	}
	for b, v := range p.buttons {
		s.Buttons[b.String()] = v
	}
	for a, v := range p.axes {
		s.Axes[a.String()] = v
	}
	return s
}

// emit must be called with p.mu held.
func (p *Pad) emit(c Change) {
	p.seq++
	c.Seq = p.seq
	c.At = p.now()
	for _, fn := range p.subscribers {
		fn(c)
	}
}

func checkRange(a mapping.VirtualAxis, value int) error {
	lo, hi := stickMin, stickMax
	switch a {
	case mapping.XboxLeftTrigger, mapping.XboxRightTrigger:
		lo, hi = triggerMin, triggerMax
	case mapping.MouseX, mapping.MouseY, mapping.MouseScrollWheel:
		return nil
	}
	if value < lo || value > hi {
		return fmt.Errorf("%w: %s=%d outside [%d, %d]", ErrOutOfRange, a, value, lo, hi)
	}
	return nil
}
