package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Factory builds one Unit instance.
type Factory func(ctx context.Context) (Unit, error)

// Registry is an in-process Host mapping plugin IDs to factories. Available
// and FindByPattern report plugins in registration order.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	infos     map[string]Info
	factories map[string]Factory
}

var errDuplicatePlugin = errors.New("plugin: duplicate plugin id")

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		infos:     make(map[string]Info),
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for info.ID.
func (r *Registry) Register(info Info, factory Factory) error {
	if info.ID == "" {
		return errors.New("plugin: empty plugin id")
	}

	if factory == nil {
		return errors.New("plugin: nil factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[info.ID]; exists {
		return fmt.Errorf("%w: %s", errDuplicatePlugin, info.ID)
	}

	r.order = append(r.order, info.ID)
	r.infos[info.ID] = info
	r.factories[info.ID] = factory

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(info Info, factory Factory) {
	err := r.Register(info, factory)
	if err != nil {
		panic(err.Error())
	}
}

// Lookup returns the info for id.
func (r *Registry) Lookup(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.infos[id]

	return info, ok
}

// Available implements Host.
func (r *Registry) Available() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.infos[id])
	}

	return out
}

// Instantiate implements Host.
func (r *Registry) Instantiate(ctx context.Context, id string) (Unit, error) {
	r.mu.RLock()
	factory := r.factories[id]
	r.mu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, id)
	}

	unit, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("plugin: instantiate %q: %w", id, err)
	}

	return unit, nil
}

// FindByPattern returns the plugins in category whose name, vendor or ID
// contains any of tokens, compared case-insensitively. An empty category
// matches every plugin.
func (r *Registry) FindByPattern(category Category, tokens ...string) []Info {
	return MatchPattern(r.Available(), category, tokens...)
}

// MatchPattern filters infos the way Registry.FindByPattern does, for hosts
// that are not a Registry.
func MatchPattern(infos []Info, category Category, tokens ...string) []Info {
	var out []Info

	for _, info := range infos {
		if category != "" && info.Category != category {
			continue
		}

		haystack := strings.ToLower(info.ID + " " + info.Name + " " + info.Vendor)

		for _, tok := range tokens {
			tok = strings.ToLower(strings.TrimSpace(tok))
			if tok != "" && strings.Contains(haystack, tok) {
				out = append(out, info)
				break
			}
		}
	}

	return out
}
