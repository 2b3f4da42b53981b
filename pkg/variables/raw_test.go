package variables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

func rawRun(number string, duration float64, vars ...RawVariable) RawRun {
	return RawRun{
		Entities:  Entities{"subject": "01", "task": "gamble", "run": number},
		Duration:  duration,
		Variables: vars,
	}
}

func TestBuildRunCollections(t *testing.T) {
	runs := []RawRun{
		rawRun("1", 0,
			RawVariable{Name: "gain", Onset: []float64{0, 4}, Duration: []float64{1, 1}, Amplitude: []float64{3, 4}},
			RawVariable{Name: "trial_type", Onset: []float64{0, 4}, Duration: []float64{1, 1}, Labels: []string{"a", "b"}},
			RawVariable{Name: "motor", Onset: []float64{2}, Duration: []float64{0.5}},
		),
		rawRun("2", 12,
			RawVariable{Name: "gain", Onset: []float64{1}, Duration: []float64{2}, Amplitude: []float64{5}},
		),
	}

	collections, err := BuildRunCollections(runs, BuildOptions{ScanLength: 8})
	require.NoError(t, err)
	require.Len(t, collections, 2)

	first := collections[0]
	assert.Equal(t, []string{"gain", "trial_type", "motor"}, first.Names())
	assert.Equal(t, DefaultSamplingRate, first.SamplingRate())
	assert.Equal(t, Entities{"subject": "01", "task": "gamble", "run": "1"}, first.Entities())

	gain, _ := first.Variable("gain")
	assert.Equal(t, 8.0, gain.Runs()[0].Duration, "scan length fills unknown durations")

	labels, ok := AsSparse(first.variables["trial_type"])
	require.True(t, ok)
	assert.True(t, labels.Categorical())

	motor, ok := AsSparse(first.variables["motor"])
	require.True(t, ok)
	assert.Equal(t, 1.0, motor.Events()[0].Amplitude, "amplitude defaults to one")

	second, _ := collections[1].Variable("gain")
	assert.Equal(t, 12.0, second.Runs()[0].Duration, "a known duration wins over scan length")
}

func TestBuildRunCollections_Dense(t *testing.T) {
	runs := []RawRun{rawRun("1", 0, RawVariable{Name: "respiration", Values: []float64{1, 2, 3, 4, 5}, SamplingRate: 2})}

	collections, err := BuildRunCollections(runs, BuildOptions{SamplingRate: 5})
	require.NoError(t, err)
	c := collections[0]
	assert.Equal(t, 5.0, c.SamplingRate())

	d, ok := AsDense(c.variables["respiration"])
	require.True(t, ok)
	assert.Equal(t, 2.5, d.Runs()[0].Duration, "duration is inferred from the samples")
	assert.Equal(t, 2.0, d.SamplingRate())
}

func TestBuildRunCollections_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  RawVariable
		want error
	}{
		{"onset duration mismatch", RawVariable{Name: "gain", Onset: []float64{0, 1}, Duration: []float64{1}}, errors.ErrMalformedVariable},
		{"amplitude mismatch", RawVariable{Name: "gain", Onset: []float64{0}, Duration: []float64{1}, Amplitude: []float64{1, 2}}, errors.ErrMalformedVariable},
		{"label mismatch", RawVariable{Name: "tt", Onset: []float64{0}, Duration: []float64{1}, Labels: []string{"a", "b"}}, errors.ErrMalformedVariable},
		{"labels and amplitudes", RawVariable{Name: "tt", Onset: []float64{0}, Duration: []float64{1}, Labels: []string{"a"}, Amplitude: []float64{1}}, errors.ErrMalformedVariable},
		{"dense without rate", RawVariable{Name: "resp", Values: []float64{1}}, errors.ErrInvalidSamplingRate},
		{"dense with events", RawVariable{Name: "resp", Values: []float64{1}, SamplingRate: 1, Onset: []float64{0}}, errors.ErrMalformedVariable},
		{"dense length", RawVariable{Name: "resp", Values: []float64{1, 2, 3}, SamplingRate: 1}, errors.ErrMalformedVariable},
		{"no name", RawVariable{Onset: []float64{0}, Duration: []float64{1}}, errors.ErrMalformedVariable},
		{"neither events nor values", RawVariable{Name: "x"}, errors.ErrMalformedVariable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRunCollections([]RawRun{rawRun("1", 2, tt.raw)}, BuildOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "run=1")
		})
	}

	_, err := BuildRunCollections(nil, BuildOptions{ScanLength: -1})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	dup := rawRun("1", 2,
		RawVariable{Name: "gain", Onset: []float64{0}, Duration: []float64{1}},
		RawVariable{Name: "gain", Onset: []float64{1}, Duration: []float64{1}})
	_, err = BuildRunCollections([]RawRun{dup}, BuildOptions{})
	assert.ErrorIs(t, err, errors.ErrMalformedVariable)
}

func TestBuildCollection(t *testing.T) {
	runs := []RawRun{
		rawRun("1", 10, RawVariable{Name: "gain", Onset: []float64{0}, Duration: []float64{1}, Amplitude: []float64{2}}),
		rawRun("2", 10, RawVariable{Name: "gain", Onset: []float64{0}, Duration: []float64{1}, Amplitude: []float64{3}}),
	}

	c, err := BuildCollection(runs, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, Entities{"subject": "01", "task": "gamble"}, c.Entities())
	gain, _ := c.Variable("gain")
	assert.Equal(t, 2, gain.Len())
	assert.Len(t, gain.Runs(), 2)

	_, err = BuildCollection(nil, BuildOptions{})
	assert.ErrorIs(t, err, errors.ErrIncompatibleCollections)
}
