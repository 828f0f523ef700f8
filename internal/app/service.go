// Package service assembles the mapping engine, its output pad and the
// profile store into one runnable unit and exposes what the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/okian/padmap/internal/adapters/http/stream"
	"github.com/okian/padmap/internal/adapters/mq/worker"
	"github.com/okian/padmap/internal/adapters/output/pad"
	"github.com/okian/padmap/internal/adapters/profilestore"
	"github.com/okian/padmap/internal/adapters/watch"
	"github.com/okian/padmap/internal/domain/dedupe"
	"github.com/okian/padmap/internal/domain/dispatch"
	"github.com/okian/padmap/internal/domain/engine"
	"github.com/okian/padmap/internal/domain/input"
	"github.com/okian/padmap/internal/domain/macro"
	"github.com/okian/padmap/pkg/logger"
)

const profilesDirPermission = 0o755

// ErrNotStarted is returned by operations that need a started service.
var ErrNotStarted = errors.New("service not started")

// Service owns every runtime component of the mapper.
type Service struct {
	mu sync.RWMutex

	// Core components
	pad        *pad.Pad
	macros     *macro.Registry
	engine     *engine.Engine
	profiles   *profilestore.Store
	deduper    dedupe.Deduper
	pool       *worker.Pool
	hub        *stream.Hub
	broadcast  *stream.Broadcaster
	watcher    *watch.Watcher
	cancelRun  context.CancelFunc
	background sync.WaitGroup

	// Configuration
	laneCount     int
	queueSize     int
	dedupeSize    int
	profilesDir   string
	activeProfile string
	profileFormat string
	watchProfiles bool
	watchDebounce time.Duration
	macrosFile    string
	padName       string

	// State
	started   bool
	startedAt time.Time

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		laneCount:     runtime.NumCPU(),
		queueSize:     4096,
		dedupeSize:    65_536,
		profilesDir:   "profiles",
		profileFormat: "json",
		padName:       "xbox360",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the components: the pad is initialized, macros and
// profiles are loaded, a profile is activated and the lanes begin draining.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting padmap service...")

	s.pad = pad.New(s.padName, pad.WithLogger(s.logger.Named("pad")))
	if err := s.pad.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize pad: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if shutdownErr := s.pad.Shutdown(ctx); shutdownErr != nil {
			s.logger.Warn(ctx, "pad shutdown after failed start", logger.Error(shutdownErr))
		}
	}()

	registry, err := macro.NewRegistry()
	if err != nil {
		return fmt.Errorf("macro registry: %w", err)
	}
	s.macros = registry

	d := dispatch.New(s.pad,
		dispatch.WithMacroResolver(s.macros),
		dispatch.WithLogger(s.logger.Named("dispatch")),
	)
	s.engine = engine.New(d, engine.WithLogger(s.logger.Named("engine")))

	if err := os.MkdirAll(s.profilesDir, profilesDirPermission); err != nil {
		return fmt.Errorf("create profiles dir: %w", err)
	}
	s.profiles, err = profilestore.New(s.profilesDir, s.engine,
		profilestore.WithFormat(s.profileFormat),
		profilestore.WithLogger(s.logger.Named("profiles")),
	)
	if err != nil {
		return fmt.Errorf("profile store: %w", err)
	}

	if s.macrosFile != "" {
		macros, err := s.profiles.LoadMacros(s.macrosFile)
		if err != nil {
			return fmt.Errorf("load macros: %w", err)
		}
		if err := s.macros.Replace(macros); err != nil {
			return fmt.Errorf("install macros: %w", err)
		}
		s.logger.Info(ctx, "macros loaded", logger.Int("count", s.macros.Len()))
	}

	if _, _, err := s.profiles.LoadAllFromDirectory(s.profilesDir); err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	s.activateInitial(ctx)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel

	s.hub = stream.NewHub(stream.WithLogger(s.logger.Named("stream")))
	s.broadcast = stream.NewBroadcaster(s.hub, s.pad)
	s.pad.Subscribe(s.broadcast.OnChange)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.hub.Run(runCtx)
	}()

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.pool = worker.NewPool(s.laneCount, s.queueSize, s.engine,
		worker.WithPoolLogger(s.logger.Named("lanes")),
	)
	s.pool.Start(runCtx)

	if s.watchProfiles {
		opts := []watch.Option{watch.WithLogger(s.logger.Named("watch"))}
		if s.watchDebounce > 0 {
			opts = append(opts, watch.WithDebounce(s.watchDebounce))
		}
		w, err := watch.New(s.profilesDir, s.profiles, opts...)
		if err != nil {
			// Without a watcher profiles still load at startup and via the API.
			s.logger.Warn(ctx, "profile watching disabled", logger.Error(err))
		} else {
			s.watcher = w
			s.background.Add(1)
			go func() {
				defer s.background.Done()
				if err := w.Run(runCtx); err != nil {
					s.logger.Warn(runCtx, "profile watcher stopped", logger.Error(err))
				}
			}()
		}
	}

	s.started = true
	s.startedAt = time.Now()
	active, _ := s.profiles.ActiveName()
	s.logger.Info(ctx, "padmap service started",
		logger.Int("lanes", s.pool.Lanes()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("profiles", len(s.profiles.Names())),
		logger.String("active", active),
		logger.String("engine", s.engine.State().String()),
	)
	return nil
}

// activateInitial activates the configured profile, or the first known
// profile by name when none is configured or the configured one fails.
func (s *Service) activateInitial(ctx context.Context) {
	if s.activeProfile != "" {
		err := s.profiles.ActivateByName(s.activeProfile)
		if err == nil {
			return
		}
		s.logger.Warn(ctx, "configured profile not activated",
			logger.String("name", s.activeProfile),
			logger.Error(err),
		)
	}
	for _, name := range s.profiles.Names() {
		if err := s.profiles.ActivateByName(name); err == nil {
			return
		}
	}
	s.logger.Info(ctx, "no profile activated; engine stays idle")
}

// Stop drains the lanes, stops the background loops and shuts the pad down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping padmap service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancelRun()
	s.background.Wait()
	if err := s.pad.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "padmap service stopped")
	return errors.Join(errs...)
}

// Submit hands ev to its device lane.
func (s *Service) Submit(ctx context.Context, ev input.Event) error {
	s.mu.RLock()
	pool, started := s.pool, s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	return pool.Submit(ctx, ev)
}

// Deduper returns the ingest deduplication cache.
func (s *Service) Deduper() dedupe.Deduper { return s.deduper }

// Profiles returns the profile store.
func (s *Service) Profiles() *profilestore.Store { return s.profiles }

// Pad returns the emulated output pad.
func (s *Service) Pad() *pad.Pad { return s.pad }

// Engine returns the mapping engine.
func (s *Service) Engine() *engine.Engine { return s.engine }

// Macros returns the macro registry.
func (s *Service) Macros() *macro.Registry { return s.macros }

// Stream returns the websocket handler for pad changes.
func (s *Service) Stream() http.Handler { return s.broadcast }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started": s.started,
	}
	if s.engine == nil {
		return stats
	}

	stats["uptime_seconds"] = time.Since(s.startedAt).Seconds()
	stats["engine"] = s.engine.Stats()

	active, activation := s.profiles.ActiveName()
	stats["profiles"] = map[string]any{
		"known":      len(s.profiles.Names()),
		"active":     active,
		"activation": activation,
		"dir":        s.profiles.Dir(),
	}
	stats["macros"] = s.macros.Names()
	stats["ingest"] = map[string]any{
		"lanes":       s.pool.Lanes(),
		"queued":      s.pool.Len(),
		"capacity":    s.pool.Cap(),
		"dedupe_size": s.deduper.Size(),
	}
	stats["stream"] = map[string]any{
		"clients": s.hub.Len(),
	}
	stats["watching"] = s.watcher != nil
	return stats
}
