package prob

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSumsToOne(t *testing.T) {
	d := FromMap(map[string]float64{"a": 2, "b": 3, "c": 5})
	d.Normalize()

	assert.InDelta(t, 1.0, d.Sum(), 1e-9)
	assert.InDelta(t, 0.2, d.Get("a"), 1e-9)
	assert.InDelta(t, 0.5, d.Get("c"), 1e-9)
	assert.True(t, d.IsNormalized())
}

func TestNormalizeZeroMass(t *testing.T) {
	d := FromMap(map[string]float64{"a": 0, "b": 0})
	d.Normalize()

	// Zero total mass normalizes to all-zero weights, not an error.
	assert.Equal(t, 0.0, d.Sum())
	assert.Equal(t, 0.0, d.Get("a"))
	assert.True(t, d.IsNormalized())
}

func TestNormalizedLeavesOriginal(t *testing.T) {
	d := FromMap(map[string]float64{"x": 4, "y": 4})
	n := d.Normalized()

	assert.Equal(t, 4.0, d.Get("x"))
	assert.False(t, d.IsNormalized())
	assert.InDelta(t, 0.5, n.Get("x"), 1e-9)
	assert.True(t, n.IsNormalized())
}

func TestMutationClearsNormalizedFlag(t *testing.T) {
	d := FromMap(map[string]float64{"a": 1})
	d.Normalize()
	require.True(t, d.IsNormalized())

	d.Add("b", 1)
	assert.False(t, d.IsNormalized())
}

func TestPlusAndScale(t *testing.T) {
	a := FromMap(map[string]float64{"x": 1, "y": 2})
	b := FromMap(map[string]float64{"y": 3, "z": 4})

	sum := a.Plus(b)
	assert.Equal(t, 1.0, sum.Get("x"))
	assert.Equal(t, 5.0, sum.Get("y"))
	assert.Equal(t, 4.0, sum.Get("z"))

	half := sum.DividedBy(2)
	assert.Equal(t, 2.5, half.Get("y"))

	double := sum.Scale(2)
	assert.Equal(t, 10.0, double.Get("y"))
}

func TestModeTieBreak(t *testing.T) {
	d := FromMap(map[string]float64{"b": 2, "a": 2})

	mode, ok := d.Mode(true)
	require.True(t, ok)
	// Ties resolve to the lexicographically smallest key.
	assert.Equal(t, "a", mode)
}

func TestModeSingleMax(t *testing.T) {
	d := FromMap(map[string]float64{"a": 1, "b": 7, "c": 3})

	mode, ok := d.Mode(false)
	require.True(t, ok)
	assert.Equal(t, "b", mode)
}

func TestModeEmpty(t *testing.T) {
	_, ok := New().Mode(true)
	assert.False(t, ok)
}

func TestEntropy(t *testing.T) {
	uniform := FromMap(map[string]float64{"a": 1, "b": 1, "c": 1, "d": 1})
	assert.InDelta(t, 2.0, uniform.Entropy(), 1e-9)

	point := FromMap(map[string]float64{"a": 5})
	assert.InDelta(t, 0.0, point.Entropy(), 1e-9)

	// Zero-weight keys are skipped (0*log 0 treated as 0).
	withZero := FromMap(map[string]float64{"a": 1, "b": 1, "z": 0})
	assert.InDelta(t, 1.0, withZero.Entropy(), 1e-9)
}

func TestExponentialRescale(t *testing.T) {
	d := FromMap(map[string]float64{"a": 9, "b": 1, "z": 0})

	flat := d.ExponentialRescale(0)
	// k=0 flattens all positive entries to uniform; zeros stay zero.
	assert.InDelta(t, 0.5, flat.Get("a"), 1e-9)
	assert.InDelta(t, 0.5, flat.Get("b"), 1e-9)
	assert.Equal(t, 0.0, flat.Get("z"))

	sharp := d.ExponentialRescale(2)
	assert.InDelta(t, 0.81/0.82, sharp.Get("a"), 1e-9)
	assert.InDelta(t, 0.01/0.82, sharp.Get("b"), 1e-9)
	assert.InDelta(t, 1.0, sharp.Sum(), 1e-9)

	identity := d.ExponentialRescale(1)
	assert.InDelta(t, 0.9, identity.Get("a"), 1e-9)
}

func TestKeysSorted(t *testing.T) {
	d := FromMap(map[string]float64{"c": 1, "a": 1, "b": 1})
	assert.Equal(t, []string{"a", "b", "c"}, d.Keys())
}

func TestKLDivergenceSelfZero(t *testing.T) {
	d := FromMap(map[string]float64{"a": 3, "b": 1})
	kld, err := KLDivergence(d, d)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, kld, 1e-12)
}

func TestKLDivergenceSupportMismatch(t *testing.T) {
	d1 := FromMap(map[string]float64{"a": 1, "b": 1})
	d2 := FromMap(map[string]float64{"a": 1})

	_, err := KLDivergence(d1, d2)
	require.ErrorIs(t, err, ErrDivergenceUndefined)

	// The other direction is defined: d1 covers d2's support.
	kld, err := KLDivergence(d2, d1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, kld, 1e-9)
}

func TestJSDivergenceProperties(t *testing.T) {
	a := FromMap(map[string]float64{"x": 1, "y": 3})
	b := FromMap(map[string]float64{"y": 1, "z": 2})

	// Symmetric.
	assert.InDelta(t, JSDivergence(a, b), JSDivergence(b, a), 1e-12)

	// Zero against itself.
	assert.InDelta(t, 0.0, JSDivergence(a, a), 1e-12)

	// Disjoint supports hit the upper bound of one bit.
	p := FromMap(map[string]float64{"a": 1})
	q := FromMap(map[string]float64{"b": 1})
	assert.InDelta(t, 1.0, JSDivergence(p, q), 1e-9)

	// Bounded in [0, 1].
	jsd := JSDivergence(a, b)
	assert.GreaterOrEqual(t, jsd, 0.0)
	assert.LessOrEqual(t, jsd, 1.0)
}

func TestJSDivergenceUnnormalizedInputs(t *testing.T) {
	// Raw counts and normalized probabilities give the same answer.
	counts := FromMap(map[string]float64{"x": 10, "y": 30})
	probs := FromMap(map[string]float64{"x": 0.25, "y": 0.75})
	other := FromMap(map[string]float64{"x": 1, "y": 1})

	assert.InDelta(t, JSDivergence(counts, other), JSDivergence(probs, other), 1e-12)
}

func TestAverageDistributions(t *testing.T) {
	a := FromMap(map[string]float64{"x": 1})        // normalizes to {x: 1}
	b := FromMap(map[string]float64{"x": 1, "y": 1}) // normalizes to {x: .5, y: .5}

	avg := AverageDistributions([]*Distribution{a, b})
	assert.InDelta(t, 0.75, avg.Get("x"), 1e-9)
	assert.InDelta(t, 0.25, avg.Get("y"), 1e-9)
	assert.InDelta(t, 1.0, avg.Sum(), 1e-9)
}

func TestEntropyNormalizesFirst(t *testing.T) {
	d := FromMap(map[string]float64{"a": 2, "b": 2})
	h := d.Entropy()
	assert.InDelta(t, 1.0, h, 1e-9)
	// Entropy normalized in place, as a side effect.
	assert.True(t, d.IsNormalized())
	assert.False(t, math.IsNaN(h))
}
