package plugin

import (
	"math"
	"sort"
	"sync"
)

// Parameter describes one automatable value in plain units.
type Parameter struct {
	ID      string
	Name    string
	Unit    string
	Min     float64
	Max     float64
	Default float64
}

// Clamp limits v to [Min, Max]. NaN maps to Default.
func (p Parameter) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return p.Default
	}

	return min(max(v, p.Min), p.Max)
}

// Params is a thread-safe parameter store for unit implementations.
type Params struct {
	mu     sync.RWMutex
	params []Parameter
	index  map[string]int
	values []float64
}

// NewParams creates a store holding every parameter at its default value.
func NewParams(params ...Parameter) *Params {
	p := &Params{
		params: append([]Parameter(nil), params...),
		index:  make(map[string]int, len(params)),
		values: make([]float64, len(params)),
	}

	for i, param := range p.params {
		p.index[param.ID] = i
		p.values[i] = param.Default
	}

	return p
}

// List returns the parameter descriptors in declaration order.
func (p *Params) List() []Parameter {
	return append([]Parameter(nil), p.params...)
}

// Get returns the current value of id, or def if id is unknown.
func (p *Params) Get(id string, def float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	i, ok := p.index[id]
	if !ok {
		return def
	}

	return p.values[i]
}

// Set stores a clamped value. It reports whether id is known.
func (p *Params) Set(id string, v float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	i, ok := p.index[id]
	if !ok {
		return false
	}

	if math.IsInf(v, 0) {
		return false
	}

	p.values[i] = p.params[i].Clamp(v)

	return true
}

// Snapshot returns all values keyed by parameter ID.
func (p *Params) Snapshot() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]float64, len(p.params))
	for i, param := range p.params {
		out[param.ID] = p.values[i]
	}

	return out
}

// Apply sets every known key in values. Keys are applied in sorted order.
func (p *Params) Apply(values map[string]float64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		p.Set(k, values[k])
	}
}

// Reset returns every parameter to its default.
func (p *Params) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, param := range p.params {
		p.values[i] = param.Default
	}
}
