package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Errors for registry operations. Callers turn these into user-facing
// messages; nothing here is fatal.
var (
	ErrDuplicateKey = errors.New("game key already registered")
	ErrNotFound     = errors.New("game key not registered")
	ErrLoadFailure  = errors.New("game implementation failed to load")
)

// Descriptor is one loadable game implementation.
type Descriptor struct {
	Key       string
	AdminOnly bool
	Tags      []string

	source  FactorySource
	factory Factory
}

// Factory returns the currently resolved factory.
func (d *Descriptor) Factory() Factory {
	return d.factory
}

// Info is the listing view of a descriptor.
type Info struct {
	Key       string
	AdminOnly bool
	Tags      []string
}

// LoadOptions carry the non-key attributes of a descriptor.
type LoadOptions struct {
	AdminOnly bool
	Tags      []string
}

// Registry maps a short lowercase game key to a loadable game descriptor.
// It guards itself with a mutex so that startup bootstrap and admin-driven
// loads need no coordination with the engine goroutine.
type Registry struct {
	mu    sync.RWMutex
	games map[string]*Descriptor
}

// NewRegistry creates an empty game registry.
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]*Descriptor)}
}

// Load resolves a factory from its source and registers it under key.
// Loading is all-or-nothing: on any failure the registry is unchanged.
func (r *Registry) Load(key string, source FactorySource, opts LoadOptions) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrLoadFailure)
	}
	if source == nil {
		return fmt.Errorf("%w: nil factory source", ErrLoadFailure)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[key]; ok {
		log.Warn().Str("component", "registry").Str("game", key).Msg("duplicate game key rejected")
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}

	factory, err := resolve(source)
	if err != nil {
		log.Error().Err(err).Str("component", "registry").Str("game", key).Msg("game load failed")
		return fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}

	tags := append([]string(nil), opts.Tags...)
	sort.Strings(tags)
	r.games[key] = &Descriptor{
		Key:       key,
		AdminOnly: opts.AdminOnly,
		Tags:      tags,
		source:    source,
		factory:   factory,
	}
	log.Info().Str("component", "registry").Str("game", key).Bool("admin_only", opts.AdminOnly).Msg("game loaded")
	return nil
}

// Unload removes the descriptor for key. Tables already running that game
// keep their existing factory output. Returns false if the key is unknown.
func (r *Registry) Unload(key string) bool {
	key = strings.ToLower(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[key]; !ok {
		log.Warn().Str("component", "registry").Str("game", key).Msg("unload of unknown game")
		return false
	}
	delete(r.games, key)
	log.Info().Str("component", "registry").Str("game", key).Msg("game unloaded")
	return true
}

// Reload re-resolves the factory from its source in place, preserving the
// key, admin gating, and tags. If re-resolution fails the previous factory
// stays active.
func (r *Registry) Reload(key string) error {
	key = strings.ToLower(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.games[key]
	if !ok {
		log.Warn().Str("component", "registry").Str("game", key).Msg("reload of unknown game")
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	factory, err := resolve(d.source)
	if err != nil {
		log.Error().Err(err).Str("component", "registry").Str("game", key).Msg("game reload failed, previous implementation kept")
		return fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}

	d.factory = factory
	log.Info().Str("component", "registry").Str("game", key).Msg("game reloaded")
	return nil
}

// Get returns the descriptor for key.
func (r *Registry) Get(key string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.games[strings.ToLower(key)]
	return d, ok
}

// List returns descriptor info sorted by key for deterministic display.
// Admin-only games are included only when includeAdmin is set.
func (r *Registry) List(includeAdmin bool) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.games))
	for _, d := range r.games {
		if d.AdminOnly && !includeAdmin {
			continue
		}
		infos = append(infos, Info{
			Key:       d.Key,
			AdminOnly: d.AdminOnly,
			Tags:      append([]string(nil), d.Tags...),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// resolve invokes a factory source, converting a panic into an error so a
// broken implementation can never take the registry down.
func resolve(source FactorySource) (factory Factory, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("factory source panicked: %v", rec)
		}
	}()
	factory, err = source()
	if err == nil && factory == nil {
		err = errors.New("factory source returned nil factory")
	}
	return factory, err
}
