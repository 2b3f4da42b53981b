package variables

import (
	"fmt"
	"math"
	"sort"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

// Density discriminates the two variable representations.
type Density int

const (
	// Sparse variables hold events (onset, duration, amplitude).
	Sparse Density = iota
	// Dense variables hold samples at a fixed rate.
	Dense
)

func (d Density) String() string {
	switch d {
	case Sparse:
		return "sparse"
	case Dense:
		return "dense"
	default:
		return fmt.Sprintf("Density(%d)", int(d))
	}
}

// ParseDensity maps "sparse" or "dense" to a Density.
func ParseDensity(s string) (Density, error) {
	switch s {
	case "", "sparse":
		return Sparse, nil
	case "dense":
		return Dense, nil
	default:
		return Sparse, errors.Newf(errors.ErrorTypeValidation, "unknown density %q (want sparse or dense)", s)
	}
}

// RunInfo describes one acquisition segment a variable spans. Duration is in
// seconds; zero means unknown.
type RunInfo struct {
	Entities Entities `json:"entities" yaml:"entities"`
	Duration float64  `json:"duration" yaml:"duration"`
}

func cloneRuns(runs []RunInfo) []RunInfo {
	out := make([]RunInfo, len(runs))
	for i, r := range runs {
		out[i] = RunInfo{Entities: r.Entities.Clone(), Duration: r.Duration}
	}
	return out
}

func runEntities(runs []RunInfo) Entities {
	sets := make([]Entities, len(runs))
	for i, r := range runs {
		sets[i] = r.Entities
	}
	return Consensus(sets...)
}

// Variable is a named series that is either Sparse or Dense. Callers switch
// on Density and convert with AsSparse / AsDense.
type Variable interface {
	Name() string
	Density() Density
	// Entities returns the pairs shared by every run the variable spans.
	Entities() Entities
	Runs() []RunInfo
	// Len is the number of events (sparse) or samples (dense).
	Len() int
	Clone() Variable
}

// AsSparse returns v as a *SparseVariable when its density is Sparse.
func AsSparse(v Variable) (*SparseVariable, bool) {
	if v == nil || v.Density() != Sparse {
		return nil, false
	}
	s, ok := v.(*SparseVariable)
	return s, ok
}

// AsDense returns v as a *DenseVariable when its density is Dense.
func AsDense(v Variable) (*DenseVariable, bool) {
	if v == nil || v.Density() != Dense {
		return nil, false
	}
	d, ok := v.(*DenseVariable)
	return d, ok
}

// Event is one sparse observation. Run indexes the owning variable's runs.
// Label is set instead of Amplitude for categorical variables.
type Event struct {
	Onset     float64
	Duration  float64
	Amplitude float64
	Label     string
	Run       int
}

// SparseVariable holds events. Onsets are run-relative and unsorted.
type SparseVariable struct {
	name        string
	events      []Event
	runs        []RunInfo
	categorical bool
}

// NewSparseVariable creates a numeric sparse variable.
func NewSparseVariable(name string, events []Event, runs []RunInfo) (*SparseVariable, error) {
	return newSparse(name, events, runs, false)
}

// NewCategoricalVariable creates a sparse variable whose events carry labels
// (e.g. trial_type) rather than numeric amplitudes.
func NewCategoricalVariable(name string, events []Event, runs []RunInfo) (*SparseVariable, error) {
	return newSparse(name, events, runs, true)
}

func newSparse(name string, events []Event, runs []RunInfo, categorical bool) (*SparseVariable, error) {
	if err := validateHeader(name, runs); err != nil {
		return nil, err
	}
	for i, ev := range events {
		if ev.Run < 0 || ev.Run >= len(runs) {
			return nil, malformed(name, "event %d refers to run %d of %d", i, ev.Run, len(runs))
		}
		if !finite(ev.Onset) || !finite(ev.Duration) {
			return nil, malformed(name, "event %d has non-finite onset or duration", i)
		}
		if ev.Duration < 0 {
			return nil, malformed(name, "event %d has negative duration %g", i, ev.Duration)
		}
		if !categorical && math.IsInf(ev.Amplitude, 0) {
			return nil, malformed(name, "event %d has infinite amplitude", i)
		}
	}
	return &SparseVariable{
		name:        name,
		events:      append([]Event(nil), events...),
		runs:        cloneRuns(runs),
		categorical: categorical,
	}, nil
}

func (v *SparseVariable) Name() string       { return v.name }
func (v *SparseVariable) Density() Density   { return Sparse }
func (v *SparseVariable) Entities() Entities { return runEntities(v.runs) }
func (v *SparseVariable) Runs() []RunInfo    { return cloneRuns(v.runs) }
func (v *SparseVariable) Len() int           { return len(v.events) }

// Categorical reports whether events carry labels instead of amplitudes.
func (v *SparseVariable) Categorical() bool { return v.categorical }

// Events returns a copy of the events in stored order.
func (v *SparseVariable) Events() []Event { return append([]Event(nil), v.events...) }

// Levels returns the distinct labels of a categorical variable, sorted.
func (v *SparseVariable) Levels() []string {
	if !v.categorical {
		return nil
	}
	seen := make(map[string]struct{})
	var levels []string
	for _, ev := range v.events {
		if _, ok := seen[ev.Label]; !ok {
			seen[ev.Label] = struct{}{}
			levels = append(levels, ev.Label)
		}
	}
	sort.Strings(levels)
	return levels
}

func (v *SparseVariable) Clone() Variable {
	return &SparseVariable{
		name:        v.name,
		events:      append([]Event(nil), v.events...),
		runs:        cloneRuns(v.runs),
		categorical: v.categorical,
	}
}

// DenseVariable holds samples at a fixed rate, run segments back to back.
type DenseVariable struct {
	name   string
	values []float64
	rate   float64
	runs   []RunInfo
}

// NewDenseVariable creates a dense variable. The number of values must equal
// the sum over runs of round(duration * rate).
func NewDenseVariable(name string, values []float64, rate float64, runs []RunInfo) (*DenseVariable, error) {
	if err := validateHeader(name, runs); err != nil {
		return nil, err
	}
	if !(rate > 0) || math.IsInf(rate, 0) {
		return nil, errors.Newf(errors.ErrorTypeInvalidSamplingRate, "variable %q: sampling rate must be positive, got %g", name, rate).
			WithDetail("variable", name)
	}
	for i, r := range runs {
		if !(r.Duration > 0) {
			return nil, malformed(name, "dense run %d has no duration", i)
		}
	}
	if want := totalSamples(runs, rate); want != len(values) {
		return nil, malformed(name, "%d values do not match %d samples implied by rate %g and run durations", len(values), want, rate)
	}
	return &DenseVariable{
		name:   name,
		values: append([]float64(nil), values...),
		rate:   rate,
		runs:   cloneRuns(runs),
	}, nil
}

func (v *DenseVariable) Name() string       { return v.name }
func (v *DenseVariable) Density() Density   { return Dense }
func (v *DenseVariable) Entities() Entities { return runEntities(v.runs) }
func (v *DenseVariable) Runs() []RunInfo    { return cloneRuns(v.runs) }
func (v *DenseVariable) Len() int           { return len(v.values) }

// SamplingRate returns the rate in Hz.
func (v *DenseVariable) SamplingRate() float64 { return v.rate }

// Values returns a copy of the samples.
func (v *DenseVariable) Values() []float64 { return append([]float64(nil), v.values...) }

// Timestamps returns the run-relative time of every sample, index / rate.
func (v *DenseVariable) Timestamps() []float64 {
	out := make([]float64, 0, len(v.values))
	for _, n := range runLengths(v.runs, v.rate) {
		for i := 0; i < n; i++ {
			out = append(out, float64(i)/v.rate)
		}
	}
	return out
}

func (v *DenseVariable) Clone() Variable {
	return &DenseVariable{
		name:   v.name,
		values: append([]float64(nil), v.values...),
		rate:   v.rate,
		runs:   cloneRuns(v.runs),
	}
}

// samplesFor is the length of a run segment at rate.
func samplesFor(duration, rate float64) int {
	return int(math.Round(duration * rate))
}

func runLengths(runs []RunInfo, rate float64) []int {
	out := make([]int, len(runs))
	for i, r := range runs {
		out[i] = samplesFor(r.Duration, rate)
	}
	return out
}

func totalSamples(runs []RunInfo, rate float64) int {
	total := 0
	for _, r := range runs {
		total += samplesFor(r.Duration, rate)
	}
	return total
}

func validateHeader(name string, runs []RunInfo) error {
	if name == "" {
		return errors.New(errors.ErrorTypeMalformedVariable, "variable name is required")
	}
	if len(runs) == 0 {
		return malformed(name, "at least one run is required")
	}
	for i, r := range runs {
		if r.Duration < 0 || !finite(r.Duration) {
			return malformed(name, "run %d has invalid duration %g", i, r.Duration)
		}
	}
	return nil
}

func malformed(name, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeMalformedVariable, "variable %q: "+format, append([]interface{}{name}, args...)...).
		WithDetail("variable", name)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
