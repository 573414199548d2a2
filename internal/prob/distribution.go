// Package prob implements the sparse probability-distribution algebra
// used by corpus statistics, divergence computation and topic-sense
// alignment.
package prob

import (
	"math"
	"sort"
)

// Distribution is a sparse mapping from string key to non-negative
// weight. Absent keys weigh zero. Weights may be raw counts or
// probabilities; the normalized flag records which, and any mutation
// clears it.
type Distribution struct {
	weights    map[string]float64
	normalized bool
}

// New returns an empty, unnormalized distribution.
func New() *Distribution {
	return &Distribution{weights: make(map[string]float64)}
}

// FromMap builds a distribution from raw weights.
func FromMap(m map[string]float64) *Distribution {
	d := New()
	d.Update(m)
	return d
}

// Get returns the weight for key, zero when absent.
func (d *Distribution) Get(key string) float64 { return d.weights[key] }

// Set assigns a weight and marks the distribution unnormalized.
func (d *Distribution) Set(key string, w float64) {
	d.weights[key] = w
	d.normalized = false
}

// Add increments the weight for key.
func (d *Distribution) Add(key string, delta float64) {
	d.weights[key] += delta
	d.normalized = false
}

// Update merges raw weights into the distribution.
func (d *Distribution) Update(m map[string]float64) {
	for k, w := range m {
		d.weights[k] = w
	}
	if len(m) > 0 {
		d.normalized = false
	}
}

// Len returns the number of keys carrying weight entries.
func (d *Distribution) Len() int { return len(d.weights) }

// Keys returns all keys in lexicographic order.
func (d *Distribution) Keys() []string {
	keys := make([]string, 0, len(d.weights))
	for k := range d.weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sum returns the total mass.
func (d *Distribution) Sum() float64 {
	var sum float64
	for _, w := range d.weights {
		sum += w
	}
	return sum
}

// Weights returns a copy of the underlying map.
func (d *Distribution) Weights() map[string]float64 {
	m := make(map[string]float64, len(d.weights))
	for k, w := range d.weights {
		m[k] = w
	}
	return m
}

// Copy returns an independent copy, preserving the normalized flag.
func (d *Distribution) Copy() *Distribution {
	c := New()
	for k, w := range d.weights {
		c.weights[k] = w
	}
	c.normalized = d.normalized
	return c
}

// IsNormalized reports whether the weights are known to sum to one.
func (d *Distribution) IsNormalized() bool { return d.normalized }

// Plus returns the elementwise sum of d and other as a new distribution.
func (d *Distribution) Plus(other *Distribution) *Distribution {
	result := New()
	for k, w := range d.weights {
		result.weights[k] += w
	}
	for k, w := range other.weights {
		result.weights[k] += w
	}
	return result
}

// Scale returns d with every weight multiplied by k.
func (d *Distribution) Scale(k float64) *Distribution {
	result := New()
	for key, w := range d.weights {
		result.weights[key] = w * k
	}
	return result
}

// DividedBy returns d with every weight divided by k.
func (d *Distribution) DividedBy(k float64) *Distribution {
	result := New()
	for key, w := range d.weights {
		result.weights[key] = w / k
	}
	return result
}

// Normalize scales the weights in place so they sum to one. A
// distribution with zero total mass normalizes to all-zero weights;
// this is a degenerate but legal output, not an error.
func (d *Distribution) Normalize() {
	if d.normalized {
		return
	}
	sum := d.Sum()
	if sum != 0 {
		for k, w := range d.weights {
			d.weights[k] = w / sum
		}
	}
	d.normalized = true
}

// Normalized returns a normalized copy, leaving d untouched.
func (d *Distribution) Normalized() *Distribution {
	c := d.Copy()
	c.Normalize()
	return c
}

// Mode returns the key with maximum weight. With tieBreak set, ties
// resolve to the lexicographically smallest key, which keeps
// hard-topic-assignment reproducible; otherwise any tied key may win.
// The second return is false for an empty distribution.
func (d *Distribution) Mode(tieBreak bool) (string, bool) {
	if len(d.weights) == 0 {
		return "", false
	}
	if !tieBreak {
		var best string
		bestW := math.Inf(-1)
		for k, w := range d.weights {
			if w > bestW {
				best, bestW = k, w
			}
		}
		return best, true
	}
	var best string
	bestW := math.Inf(-1)
	for _, k := range d.Keys() {
		if w := d.weights[k]; w > bestW {
			best, bestW = k, w
		}
	}
	return best, true
}

// Entropy returns the Shannon entropy in bits, normalizing first when
// needed. Zero-weight keys contribute nothing (0*log 0 = 0).
func (d *Distribution) Entropy() float64 {
	if !d.normalized {
		d.Normalize()
	}
	var h float64
	for _, p := range d.weights {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

// ExponentialRescale re-weights each probability by p^k and
// renormalizes, sharpening (k > 1) or flattening (k < 1) the
// distribution. Zero-weight entries stay zero. Returns a new
// distribution.
func (d *Distribution) ExponentialRescale(k float64) *Distribution {
	sum := d.Sum()
	result := New()
	for key, w := range d.weights {
		if w > 0 {
			result.weights[key] = math.Pow(w/sum, k)
		} else {
			result.weights[key] = 0
		}
	}
	result.Normalize()
	return result
}
