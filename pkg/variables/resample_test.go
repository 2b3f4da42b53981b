package variables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

func TestToDense_Sparse(t *testing.T) {
	v := mustSparse(t, "gain", []Event{
		{Onset: 1, Duration: 2, Amplitude: 5},
		{Onset: 2, Duration: 3, Amplitude: 7},
		{Onset: 9, Duration: 5, Amplitude: 3},
	}, run("01", "1", 10))

	d, err := ToDense(v, 1, Nearest)
	require.NoError(t, err)

	assert.Equal(t, 1.0, d.SamplingRate())
	assert.Equal(t, []float64{0, 5, 7, 7, 7, 0, 0, 0, 0, 3}, d.Values(),
		"later events overwrite earlier ones and spans are clamped to the run")
	assert.Equal(t, v.Runs(), d.Runs())
}

func TestToDense_SparsePerRun(t *testing.T) {
	v := mustSparse(t, "gain", []Event{
		{Onset: 0, Duration: 1, Amplitude: 1, Run: 0},
		{Onset: 0, Duration: 1, Amplitude: 2, Run: 1},
	}, run("01", "1", 2), run("01", "2", 3))

	d, err := ToDense(v, 2, Nearest)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 0, 0, 2, 2, 0, 0, 0, 0}, d.Values(), "onsets are relative to their own run")
}

func TestToDense_Errors(t *testing.T) {
	v := mustSparse(t, "gain", []Event{{Onset: 0, Duration: 1, Amplitude: 1}}, run("01", "1", 10))
	_, err := ToDense(v, 0, Nearest)
	assert.ErrorIs(t, err, errors.ErrInvalidSamplingRate)

	unknown := mustSparse(t, "gain", []Event{{Onset: 0, Duration: 1, Amplitude: 1}}, run("01", "1", 0))
	_, err = ToDense(unknown, 10, Nearest)
	assert.ErrorIs(t, err, errors.ErrMissingDuration)

	labels := mustCategorical(t, "trial_type", []Event{{Onset: 0, Duration: 1, Label: "a"}}, run("01", "1", 10))
	_, err = ToDense(labels, 10, Nearest)
	assert.ErrorIs(t, err, errors.ErrMalformedVariable)
}

func TestToDense_SameRateIsCopy(t *testing.T) {
	d := mustDense(t, "resp", []float64{1, 2, 3, 4}, 2, run("01", "1", 2))

	out, err := ToDense(d, 2, Linear)
	require.NoError(t, err)
	assert.Equal(t, d.Values(), out.Values())
	assert.NotSame(t, d, out)

	out.values[0] = 100
	assert.Equal(t, 1.0, d.Values()[0])
}

func TestToDense_Downsample(t *testing.T) {
	d := mustDense(t, "resp", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 10, run("01", "1", 1))

	out, err := ToDense(d, 5, Nearest)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 4, 6, 8}, out.Values())
}

func TestToDense_Upsample(t *testing.T) {
	d := mustDense(t, "resp", []float64{1, 2}, 2, run("01", "1", 1))

	nearest, err := ToDense(d, 4, Nearest)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 2}, nearest.Values())

	linear, err := ToDense(d, 4, Linear)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1.5, 2, 2}, linear.Values())
}

func TestToDense_RateScaling(t *testing.T) {
	v := mustSparse(t, "gain", []Event{{Onset: 1, Duration: 2, Amplitude: 1}},
		run("01", "1", 30), run("01", "2", 12.5))

	base, err := ToDense(v, 10, Nearest)
	require.NoError(t, err)
	for _, k := range []float64{2, 3} {
		scaled, err := ToDense(v, 10*k, Nearest)
		require.NoError(t, err)
		assert.Equal(t, int(k)*base.Len(), scaled.Len())
	}

	again, err := ToDense(base, 10, Nearest)
	require.NoError(t, err)
	assert.Equal(t, base.Values(), again.Values(), "same-rate resampling is idempotent")
}

func TestToDense_Deterministic(t *testing.T) {
	d := mustDense(t, "resp", []float64{0.1, 0.7, 0.3, 0.9, 0.5, 0.2}, 3, run("01", "1", 2))

	a, err := ToDense(d, 7, Linear)
	require.NoError(t, err)
	b, err := ToDense(d, 7, Linear)
	require.NoError(t, err)
	assert.Equal(t, a.Values(), b.Values())
	assert.Equal(t, 14, a.Len())
}

func TestDummies(t *testing.T) {
	v := mustCategorical(t, "trial_type", []Event{
		{Onset: 0, Duration: 1, Label: "gamble"},
		{Onset: 2, Duration: 1, Label: "control"},
		{Onset: 4, Duration: 1, Label: "gamble"},
	}, run("01", "1", 6))

	parts := Dummies(v)
	require.Len(t, parts, 2)
	assert.Equal(t, "trial_type.control", parts[0].Name())
	assert.Equal(t, "trial_type.gamble", parts[1].Name())
	assert.False(t, parts[1].Categorical())
	assert.Equal(t, []Event{
		{Onset: 0, Duration: 1, Amplitude: 1},
		{Onset: 4, Duration: 1, Amplitude: 1},
	}, parts[1].Events())

	d, err := ToDense(parts[1], 1, Nearest)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0}, d.Values())

	numeric := mustSparse(t, "gain", []Event{{Onset: 0, Duration: 1, Amplitude: 3}}, run("01", "1", 6))
	same := Dummies(numeric)
	require.Len(t, same, 1)
	assert.Equal(t, "gain", same[0].Name())
}
