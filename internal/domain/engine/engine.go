// Package engine owns the active rule set and runs the matcher and the
// dispatcher for every input event.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/padmap/internal/domain/dispatch"
	"github.com/okian/padmap/internal/domain/input"
	"github.com/okian/padmap/internal/domain/mapping"
	"github.com/okian/padmap/pkg/logger"
	"github.com/okian/padmap/pkg/metrics"
)

// State is the observable engine state.
type State uint8

// Engine states. There is no teardown state; an engine is dropped, not stopped.
const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// Dispatcher issues a matched rule's actions. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev input.Event, actions []mapping.Action) dispatch.Result
}

// ruleSet is published once and never mutated afterwards.
type ruleSet struct {
	rules    []mapping.Rule
	version  uint64
	loadedAt time.Time
}

// Stats are cumulative counters since the engine was created.
type Stats struct {
	State          string    `json:"state"`
	Version        uint64    `json:"version"`
	ActiveRules    int       `json:"active_rules"`
	LoadedAt       time.Time `json:"loaded_at,omitzero"`
	Processed      uint64    `json:"processed"`
	Matched        uint64    `json:"matched"`
	Unmatched      uint64    `json:"unmatched"`
	ActionsIssued  uint64    `json:"actions_issued"`
	ActionFailures uint64    `json:"action_failures"`
}

// Engine maps input events to output actions. ProcessInput may be called
// concurrently with itself and with LoadMappings.
type Engine struct {
	dispatcher Dispatcher
	log        logger.Logger
	now        func() time.Time

	active atomic.Pointer[ruleSet]

	processed      atomic.Uint64
	matched        atomic.Uint64
	unmatched      atomic.Uint64
	actionsIssued  atomic.Uint64
	actionFailures atomic.Uint64
}

// New creates an idle engine.
func New(d Dispatcher, opts ...Option) *Engine {
	e := &Engine{dispatcher: d, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("engine")
	}
	return e
}

// LoadMappings replaces the active rule set with a copy of rules in one
// atomic swap. An in-flight ProcessInput keeps the set it started with.
// Concurrent loads publish strictly increasing versions.
func (e *Engine) LoadMappings(rules []mapping.Rule) {
	next := &ruleSet{
		rules:    mapping.CloneRules(rules),
		loadedAt: e.now(),
	}
	for {
		cur := e.active.Load()
		next.version = 1
		if cur != nil {
			next.version = cur.version + 1
		}
		if e.active.CompareAndSwap(cur, next) {
			break
		}
	}

	metrics.RecordMappingLoad()
	metrics.UpdateActiveRules(len(next.rules))
	e.log.Info(context.Background(), "mappings loaded",
		logger.Int("rules", len(next.rules)),
		logger.Uint64("version", next.version),
	)
}

// ProcessInput matches ev against the active rule set and dispatches the
// first matching rule. Outcomes are reported through logs and metrics only.
func (e *Engine) ProcessInput(ctx context.Context, ev input.Event) {
	start := time.Now()
	set := e.active.Load()
	e.processed.Add(1)
	metrics.RecordEventProcessed(ev.Kind().String())

	if set == nil {
		e.unmatched.Add(1)
		metrics.RecordEventUnmatched()
		return
	}

	rule, idx, ok := mapping.Match(set.rules, ev)
	if !ok {
		e.unmatched.Add(1)
		metrics.RecordEventUnmatched()
		e.log.Debug(ctx, "no rule matched", logger.String("event", ev.String()))
		return
	}
	e.matched.Add(1)
	metrics.RecordRuleMatched()

	res := e.dispatcher.Dispatch(ctx, ev, rule.Actions)
	e.actionsIssued.Add(uint64(res.Issued))
	e.actionFailures.Add(uint64(len(res.Failures)))
	metrics.RecordProcessLatency(float64(time.Since(start).Microseconds()) / 1000)

	e.log.Debug(ctx, "rule dispatched",
		logger.String("event", ev.String()),
		logger.Int("rule", idx),
		logger.Uint64("version", set.version),
		logger.Int("issued", res.Issued),
		logger.Int("failures", len(res.Failures)),
	)
}

// State reports Idle until the first LoadMappings, Active afterwards.
func (e *Engine) State() State {
	if e.active.Load() == nil {
		return StateIdle
	}
	return StateActive
}

// Rules returns a copy of the active rule set.
func (e *Engine) Rules() []mapping.Rule {
	set := e.active.Load()
	if set == nil {
		return nil
	}
	return mapping.CloneRules(set.rules)
}

// Version is incremented by every LoadMappings; 0 means idle.
func (e *Engine) Version() uint64 {
	if set := e.active.Load(); set != nil {
		return set.version
	}
	return 0
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		State:          e.State().String(),
		Processed:      e.processed.Load(),
		Matched:        e.matched.Load(),
		Unmatched:      e.unmatched.Load(),
		ActionsIssued:  e.actionsIssued.Load(),
		ActionFailures: e.actionFailures.Load(),
	}
	if set := e.active.Load(); set != nil {
		s.Version = set.version
		s.ActiveRules = len(set.rules)
		s.LoadedAt = set.loadedAt
	}
	return s
}
