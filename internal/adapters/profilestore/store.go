// Package profilestore persists named rule sets and manages which one is
// active in the mapping engine.
package profilestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/padmap/internal/domain/macro"
	"github.com/okian/padmap/internal/domain/mapping"
	"github.com/okian/padmap/pkg/logger"
	"github.com/okian/padmap/pkg/metrics"
)

// Engine receives the rules of an activated profile.
type Engine interface {
	LoadMappings(rules []mapping.Rule)
}

// LoadFailure reports one document that could not be loaded.
type LoadFailure struct {
	Path string
	Err  error
}

func (f LoadFailure) Error() string { return fmt.Sprintf("%s: %v", f.Path, f.Err) }
func (f LoadFailure) Unwrap() error { return f.Err }

// entry is a known profile and the file it came from.
type entry struct {
	profile    mapping.Profile
	identifier string
	path       string
}

// Store keeps the known profiles keyed by name. All methods are safe for
// concurrent use.
type Store struct {
	dir    string
	ext    string
	engine Engine
	log    logger.Logger

	mu       sync.RWMutex
	profiles map[string]entry // profile name -> entry
	active   string
	// activation identifies the current activation for log correlation.
	activation string
}

// New creates a store rooted at dir. Profiles are activated into engine.
func New(dir string, engine Engine, opts ...Option) (*Store, error) {
	s := &Store{dir: dir, ext: ".json", engine: engine, profiles: map[string]entry{}}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.log == nil {
		s.log = logger.Get().Named("profilestore")
	}
	return s, nil
}

// Dir returns the directory identifiers resolve against.
func (s *Store) Dir() string { return s.dir }

// Load reads the profile stored under identifier and adds it to the known
// profiles. On failure the known profiles are unchanged.
func (s *Store) Load(identifier string) (mapping.Profile, error) {
	if err := validIdentifier(identifier); err != nil {
		return mapping.Profile{}, err
	}
	path, err := s.resolve(identifier)
	if err != nil {
		metrics.RecordProfileLoadFailure(reason(err))
		return mapping.Profile{}, err
	}
	return s.LoadFile(path)
}

// LoadFile reads one profile document and adds it to the known profiles. The
// identifier is the file name without extension.
func (s *Store) LoadFile(path string) (mapping.Profile, error) {
	p, err := readProfile(path)
	if err == nil {
		err = s.insert(entry{profile: p, identifier: stem(path), path: path})
	}
	if err != nil {
		metrics.RecordProfileLoadFailure(reason(err))
		return mapping.Profile{}, fmt.Errorf("load %s: %w", path, err)
	}
	metrics.RecordProfileLoad()
	s.log.Debug(context.Background(), "profile loaded",
		logger.String("name", p.Name),
		logger.String("path", path),
		logger.Int("rules", len(p.Rules)),
	)
	return p, nil
}

// LoadAllFromDirectory loads every profile document in dir independently.
// One bad document does not stop the others; the returned error is only set
// when the directory itself cannot be read.
func (s *Store) LoadAllFromDirectory(dir string) ([]mapping.Profile, []LoadFailure, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: directory %s", ErrNotFound, dir)
		}
		return nil, nil, fmt.Errorf("read profile directory: %w", err)
	}

	var (
		loaded   []mapping.Profile
		failures []LoadFailure
	)
	for _, item := range items {
		if item.IsDir() || !IsProfileFile(item.Name()) {
			continue
		}
		path := filepath.Join(dir, item.Name())
		p, err := s.LoadFile(path)
		if err != nil {
			failures = append(failures, LoadFailure{Path: path, Err: err})
			s.log.Warn(context.Background(), "skipping profile", logger.String("path", path), logger.Error(err))
			continue
		}
		loaded = append(loaded, p)
	}
	s.log.Info(context.Background(), "profiles loaded",
		logger.String("dir", dir),
		logger.Int("loaded", len(loaded)),
		logger.Int("failed", len(failures)),
	)
	return loaded, failures, nil
}

// Save writes p under identifier, replacing any previous file atomically.
// An existing file keeps its format; new files use the store's format.
func (s *Store) Save(p mapping.Profile, identifier string) error {
	if err := validIdentifier(identifier); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	doc, err := toProfileDoc(p)
	if err != nil {
		return err
	}

	path, err := s.resolve(identifier)
	if errors.Is(err, ErrNotFound) {
		path = filepath.Join(s.dir, identifier+s.ext)
	} else if err != nil {
		return err
	}

	// Name uniqueness is checked before touching the disk.
	s.mu.RLock()
	existing, taken := s.profiles[p.Name]
	s.mu.RUnlock()
	if taken && existing.identifier != identifier {
		return fmt.Errorf("%w: %q is stored as %q", ErrDuplicateName, p.Name, existing.identifier)
	}

	c, err := codecFor(path)
	if err != nil {
		return err
	}
	data, err := c.encode(doc)
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", p.Name, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("save profile %q: %w", p.Name, err)
	}
	if err := s.insert(entry{profile: cloneProfile(p), identifier: identifier, path: path}); err != nil {
		return err
	}

	metrics.RecordProfileSave()
	s.log.Info(context.Background(), "profile saved", logger.String("name", p.Name), logger.String("path", path))
	return nil
}

// Delete removes the file stored under identifier and forgets its profile.
// Deleting the active profile leaves the engine's rules in place.
func (s *Store) Delete(identifier string) error {
	if err := validIdentifier(identifier); err != nil {
		return err
	}
	path, err := s.resolve(identifier)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete profile %q: %w", identifier, err)
	}
	s.Forget(path)
	return nil
}

// Forget drops the profile loaded from path without touching the disk.
func (s *Store) Forget(path string) {
	s.mu.Lock()
	for name, e := range s.profiles {
		if e.path == path {
			delete(s.profiles, name)
			if s.active == name {
				s.active = ""
			}
		}
	}
	known := len(s.profiles)
	s.mu.Unlock()
	metrics.UpdateProfilesKnown(known)
}

// Activate validates p and hands its rules to the engine. A profile that
// fails validation leaves the previous rule set active. Macro references are
// resolved at dispatch time, not here.
func (s *Store) Activate(p mapping.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	s.mu.Lock()
	s.engine.LoadMappings(p.Rules)
	s.active = p.Name
	s.activation = uuid.NewString()
	activation := s.activation
	s.mu.Unlock()

	metrics.RecordProfileActivation()
	s.log.Info(context.Background(), "profile activated",
		logger.String("name", p.Name),
		logger.String("activation", activation),
		logger.Int("rules", len(p.Rules)),
	)
	return nil
}

// ActivateByName activates a known profile.
func (s *Store) ActivateByName(name string) error {
	p, err := s.Get(name)
	if err != nil {
		return err
	}
	return s.Activate(p)
}

// Active returns the active profile, if it is still known.
func (s *Store) Active() (mapping.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == "" {
		return mapping.Profile{}, false
	}
	e, ok := s.profiles[s.active]
	if !ok {
		return mapping.Profile{}, false
	}
	return cloneProfile(e.profile), true
}

// ActiveName returns the name of the active profile and its activation id.
func (s *Store) ActiveName() (name, activation string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.activation
}

// Get returns a known profile by name.
func (s *Store) Get(name string) (mapping.Profile, error) {
	s.mu.RLock()
	e, ok := s.profiles[name]
	s.mu.RUnlock()
	if !ok {
		return mapping.Profile{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return cloneProfile(e.profile), nil
}

// IdentifierOf returns the identifier a known profile is stored under.
func (s *Store) IdentifierOf(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.profiles[name]
	return e.identifier, ok
}

// Names returns the known profile names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// LoadMacros reads a macro document. The caller installs the result in its
// registry.
func (s *Store) LoadMacros(path string) ([]macro.Macro, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read macros: %w", err)
	}
	var doc macroFileDoc
	if err := c.decode(data, &doc); err != nil {
		return nil, fmt.Errorf("macros %s: %w", path, err)
	}
	macros, err := fromMacroFileDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("macros %s: %w", path, err)
	}
	s.log.Info(context.Background(), "macros loaded", logger.String("path", path), logger.Int("count", len(macros)))
	return macros, nil
}

// insert adds or replaces the entry for e.identifier. A name held by another
// identifier is rejected.
func (s *Store) insert(e entry) error {
	s.mu.Lock()
	if other, ok := s.profiles[e.profile.Name]; ok && other.path != e.path {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q already loaded from %s", ErrDuplicateName, e.profile.Name, other.path)
	}
	// The file may have been renamed internally since it was last loaded.
	for name, old := range s.profiles {
		if old.path == e.path && name != e.profile.Name {
			delete(s.profiles, name)
			if s.active == name {
				s.active = e.profile.Name
			}
		}
	}
	s.profiles[e.profile.Name] = e
	known := len(s.profiles)
	s.mu.Unlock()
	metrics.UpdateProfilesKnown(known)
	return nil
}

// resolve finds the file holding identifier, trying each known extension.
func (s *Store) resolve(identifier string) (string, error) {
	for _, ext := range extensions {
		path := filepath.Join(s.dir, identifier+ext)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%w: %q in %s", ErrNotFound, identifier, s.dir)
}

func readProfile(path string) (mapping.Profile, error) {
	c, err := codecFor(path)
	if err != nil {
		return mapping.Profile{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mapping.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return mapping.Profile{}, err
	}
	var doc profileDoc
	if err := c.decode(data, &doc); err != nil {
		return mapping.Profile{}, err
	}
	return fromProfileDoc(doc)
}

// writeAtomic writes data next to path and renames it into place so readers
// never see a truncated file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// IsProfileFile reports whether name looks like a profile document. Hidden
// files, including in-progress saves, are excluded.
func IsProfileFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := codecs[strings.ToLower(filepath.Ext(base))]
	return ok
}

func validIdentifier(identifier string) error {
	if strings.TrimSpace(identifier) == "" || identifier == "." || identifier == ".." ||
		strings.ContainsAny(identifier, `/\`) || strings.ContainsRune(identifier, filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrInvalidName, identifier)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func cloneProfile(p mapping.Profile) mapping.Profile {
	if p.Rules == nil {
		return p
	}
	return mapping.Profile{Name: p.Name, Rules: mapping.CloneRules(p.Rules)}
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCorrupt):
		return "corrupt"
	case errors.Is(err, ErrMalformedData):
		return "malformed"
	case errors.Is(err, ErrDuplicateName):
		return "duplicate"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported"
	default:
		return "io"
	}
}
