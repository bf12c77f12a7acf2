// Package weights holds the per-strategy weight map and its on-disk store.
package weights

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Map maps strategy name to a non-negative weight. Accepted maps sum to 1.
type Map map[string]float64

// ErrIncomplete is returned when a stored map lacks a required strategy.
var ErrIncomplete = errors.New("weight map is missing strategies")

// Sum adds all weights.
func (m Map) Sum() float64 {
	total := 0.0
	for _, w := range m {
		total += w
	}
	return total
}

// Clone returns an independent copy.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Normalize returns a copy scaled to sum to 1. Negative or non-finite entries
// are clamped to zero; an all-zero map becomes uniform.
func (m Map) Normalize() Map {
	if len(m) == 0 {
		return Map{}
	}
	out := make(Map, len(m))
	total := 0.0
	for k, w := range m {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			w = 0
		}
		out[k] = w
		total += w
	}
	if total == 0 {
		for k := range out {
			out[k] = 1 / float64(len(out))
		}
		return out
	}
	for k, w := range out {
		out[k] = w / total
	}
	return out
}

// Get returns the weight for a strategy, zero when absent.
func (m Map) Get(name string) float64 { return m[name] }

// Names returns the strategy names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate rejects negative or non-finite weights and an all-zero map. When
// required is non-nil every listed strategy must be present.
func (m Map) Validate(required []string) error {
	if len(m) == 0 {
		return errors.New("weight map is empty")
	}
	for k, w := range m {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight %q is not finite", k)
		}
		if w < 0 {
			return fmt.Errorf("weight %q is negative: %v", k, w)
		}
	}
	if m.Sum() <= 0 {
		return errors.New("weights sum to zero")
	}
	var missing []string
	for _, k := range required {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %v", ErrIncomplete, missing)
	}
	return nil
}

// Restrict drops every key not in keys.
func (m Map) Restrict(keys []string) Map {
	out := make(Map, len(keys))
	for _, k := range keys {
		if w, ok := m[k]; ok {
			out[k] = w
		}
	}
	return out
}
