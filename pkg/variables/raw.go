package variables

import (
	"strconv"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

// RawRun is one run as handed over by a producer: its entities, its scan
// duration (zero when unknown) and the variables recorded in it.
type RawRun struct {
	Entities  Entities      `json:"entities" yaml:"entities"`
	Duration  float64       `json:"duration,omitempty" yaml:"duration,omitempty"`
	Variables []RawVariable `json:"variables" yaml:"variables"`
}

// RawVariable is an unvalidated variable definition.
//
// A definition with Values or SamplingRate is dense. Otherwise it is sparse:
// Onset and Duration give the events, Labels makes it categorical and
// Amplitude gives numeric heights. A sparse definition with neither Labels
// nor Amplitude has unit amplitude.
type RawVariable struct {
	Name         string    `json:"name" yaml:"name"`
	Onset        []float64 `json:"onset,omitempty" yaml:"onset,omitempty"`
	Duration     []float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Amplitude    []float64 `json:"amplitude,omitempty" yaml:"amplitude,omitempty"`
	Labels       []string  `json:"labels,omitempty" yaml:"labels,omitempty"`
	Values       []float64 `json:"values,omitempty" yaml:"values,omitempty"`
	SamplingRate float64   `json:"sampling_rate,omitempty" yaml:"sampling_rate,omitempty"`
}

// IsDense reports whether the definition describes a dense variable.
func (r RawVariable) IsDense() bool {
	return len(r.Values) > 0 || r.SamplingRate != 0
}

// BuildOptions controls BuildRunCollections and BuildCollection.
type BuildOptions struct {
	// SamplingRate is the collection rate. Zero means DefaultSamplingRate.
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate"`
	// ScanLength, in seconds, stands in for runs without a duration.
	ScanLength float64 `json:"scan_length" yaml:"scan_length"`
}

func (o BuildOptions) rate() float64 {
	if o.SamplingRate == 0 {
		return DefaultSamplingRate
	}
	return o.SamplingRate
}

// BuildRunCollections validates the raw runs and returns one collection per
// run, in input order.
func BuildRunCollections(runs []RawRun, opts BuildOptions) ([]*Collection, error) {
	if opts.ScanLength < 0 || !finite(opts.ScanLength) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "scan length must be non-negative, got %g", opts.ScanLength)
	}
	out := make([]*Collection, 0, len(runs))
	for i, rr := range runs {
		c, err := buildRun(rr, opts)
		if err != nil {
			return nil, errors.Wrap(err, errors.GetType(err), "run "+runLabel(i, rr.Entities)).
				WithDetail("run_index", i)
		}
		out = append(out, c)
	}
	return out, nil
}

// BuildCollection builds every run and merges the results.
func BuildCollection(runs []RawRun, opts BuildOptions) (*Collection, error) {
	collections, err := BuildRunCollections(runs, opts)
	if err != nil {
		return nil, err
	}
	return Merge(collections...)
}

func buildRun(rr RawRun, opts BuildOptions) (*Collection, error) {
	duration := rr.Duration
	if duration == 0 {
		duration = opts.ScanLength
	}

	vars := make([]Variable, 0, len(rr.Variables))
	for _, raw := range rr.Variables {
		run := RunInfo{Entities: rr.Entities.Clone(), Duration: duration}
		v, err := buildVariable(raw, run)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return NewCollection(vars, opts.rate())
}

func buildVariable(raw RawVariable, run RunInfo) (Variable, error) {
	if raw.IsDense() {
		if len(raw.Onset) > 0 || len(raw.Labels) > 0 || len(raw.Amplitude) > 0 {
			return nil, malformed(raw.Name, "dense definition cannot carry events")
		}
		if !(raw.SamplingRate > 0) {
			return nil, errors.Newf(errors.ErrorTypeInvalidSamplingRate, "variable %q: sampling rate must be positive, got %g", raw.Name, raw.SamplingRate).
				WithDetail("variable", raw.Name)
		}
		if run.Duration == 0 {
			run.Duration = float64(len(raw.Values)) / raw.SamplingRate
		}
		return NewDenseVariable(raw.Name, raw.Values, raw.SamplingRate, []RunInfo{run})
	}

	if raw.Onset == nil && raw.Duration == nil && raw.Amplitude == nil && raw.Labels == nil {
		return nil, malformed(raw.Name, "definition has neither events nor values")
	}
	n := len(raw.Onset)
	if len(raw.Duration) != n {
		return nil, malformed(raw.Name, "%d onsets but %d durations", n, len(raw.Duration))
	}
	if len(raw.Labels) > 0 && len(raw.Amplitude) > 0 {
		return nil, malformed(raw.Name, "definition has both labels and amplitudes")
	}
	if len(raw.Labels) > 0 && len(raw.Labels) != n {
		return nil, malformed(raw.Name, "%d onsets but %d labels", n, len(raw.Labels))
	}
	if len(raw.Amplitude) > 0 && len(raw.Amplitude) != n {
		return nil, malformed(raw.Name, "%d onsets but %d amplitudes", n, len(raw.Amplitude))
	}

	events := make([]Event, n)
	for i := range events {
		events[i] = Event{Onset: raw.Onset[i], Duration: raw.Duration[i], Amplitude: 1}
		if len(raw.Amplitude) > 0 {
			events[i].Amplitude = raw.Amplitude[i]
		}
		if len(raw.Labels) > 0 {
			events[i].Amplitude = 0
			events[i].Label = raw.Labels[i]
		}
	}
	if len(raw.Labels) > 0 {
		return NewCategoricalVariable(raw.Name, events, []RunInfo{run})
	}
	return NewSparseVariable(raw.Name, events, []RunInfo{run})
}

func runLabel(i int, e Entities) string {
	if len(e) == 0 {
		return "#" + strconv.Itoa(i)
	}
	return e.String()
}
