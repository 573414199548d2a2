package prob

import (
	"errors"
	"fmt"
	"math"
)

// ErrDivergenceUndefined is returned by KLDivergence when the second
// distribution assigns zero weight to a key the first supports. The
// true divergence is infinite there; callers must either guarantee
// support overlap or use JSDivergence, which cannot hit this case.
var ErrDivergenceUndefined = errors.New("kl divergence undefined: support mismatch")

// KLDivergence computes sum p1*log2(p1/p2) over keys where p1 > 0.
// Both inputs are normalized first (the inputs themselves are not
// modified).
func KLDivergence(d1, d2 *Distribution) (float64, error) {
	n1 := d1.Normalized()
	n2 := d2.Normalized()
	var kld float64
	for k, p1 := range n1.weights {
		if p1 <= 0 {
			continue
		}
		p2 := n2.Get(k)
		if p2 <= 0 {
			return 0, fmt.Errorf("key %q: %w", k, ErrDivergenceUndefined)
		}
		kld += p1 * math.Log2(p1/p2)
	}
	return kld, nil
}

// JSDivergence computes the Jensen-Shannon divergence in bits: the
// average of both KL divergences against the midpoint (d1+d2)/2.
// Symmetric, bounded in [0, 1], and defined for any pair of
// distributions since the midpoint covers the union of supports.
func JSDivergence(d1, d2 *Distribution) float64 {
	n1 := d1.Normalized()
	n2 := d2.Normalized()
	mid := n1.Plus(n2).DividedBy(2)
	// The midpoint dominates both inputs, so KL cannot fail here.
	kl1, _ := KLDivergence(n1, mid)
	kl2, _ := KLDivergence(n2, mid)
	return 0.5 * (kl1 + kl2)
}

// AverageDistributions returns the normalized mean of the given
// distributions, each normalized before summing.
func AverageDistributions(dists []*Distribution) *Distribution {
	sum := New()
	for _, d := range dists {
		sum = sum.Plus(d.Normalized())
	}
	sum.Normalize()
	return sum
}
