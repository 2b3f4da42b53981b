package variables

import (
	"math"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

// Method selects how dense samples are mapped onto a new rate.
type Method int

const (
	// Nearest takes source sample round(i * src / target), clamped to the run.
	Nearest Method = iota
	// Linear interpolates between the two neighbouring source samples.
	Linear
)

func (m Method) String() string {
	if m == Linear {
		return "linear"
	}
	return "nearest"
}

// ParseMethod maps "nearest" or "linear" to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "nearest":
		return Nearest, nil
	case "linear":
		return Linear, nil
	default:
		return Nearest, errors.Newf(errors.ErrorTypeValidation, "unknown resampling method %q (want nearest or linear)", s)
	}
}

// ToDense converts v into a dense variable at rate. Sparse variables need
// every run duration to be known; categorical variables have no numeric
// dense form and must be expanded with Dummies first.
func ToDense(v Variable, rate float64, method Method) (*DenseVariable, error) {
	if err := checkRate(rate); err != nil {
		return nil, err
	}
	switch v.Density() {
	case Sparse:
		s, _ := AsSparse(v)
		return densify(s, rate)
	case Dense:
		d, _ := AsDense(v)
		return rerate(d, rate, method), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "variable %q has unknown density %s", v.Name(), v.Density())
	}
}

func checkRate(rate float64) error {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return errors.Newf(errors.ErrorTypeInvalidSamplingRate, "sampling rate must be positive, got %g", rate).
			WithDetail("rate", rate)
	}
	return nil
}

// densify writes each event's amplitude over [round(onset*rate),
// round((onset+duration)*rate)) within its run. Later events overwrite
// earlier ones; uncovered samples stay zero.
func densify(v *SparseVariable, rate float64) (*DenseVariable, error) {
	if v.categorical {
		return nil, malformed(v.name, "categorical variable has no dense numeric form; expand it with Dummies")
	}
	for i, r := range v.runs {
		if !(r.Duration > 0) {
			return nil, errors.Newf(errors.ErrorTypeMissingDuration, "variable %q: run %d has no known duration", v.name, i).
				WithDetail("variable", v.name).
				WithDetail("run", r.Entities.String())
		}
	}

	lengths := runLengths(v.runs, rate)
	offsets := make([]int, len(lengths))
	total := 0
	for i, n := range lengths {
		offsets[i] = total
		total += n
	}

	values := make([]float64, total)
	for _, ev := range v.events {
		n := lengths[ev.Run]
		start := clamp(int(math.Round(ev.Onset*rate)), 0, n)
		end := clamp(int(math.Round((ev.Onset+ev.Duration)*rate)), 0, n)
		seg := values[offsets[ev.Run]+start : offsets[ev.Run]+end]
		for i := range seg {
			seg[i] = ev.Amplitude
		}
	}

	return &DenseVariable{
		name:   v.name,
		values: values,
		rate:   rate,
		runs:   cloneRuns(v.runs),
	}, nil
}

// rerate maps every run segment of v onto rate independently.
func rerate(v *DenseVariable, rate float64, method Method) *DenseVariable {
	if rate == v.rate {
		return v.Clone().(*DenseVariable)
	}

	srcLengths := runLengths(v.runs, v.rate)
	dstLengths := runLengths(v.runs, rate)
	values := make([]float64, totalSamples(v.runs, rate))
	ratio := v.rate / rate

	srcOff, dstOff := 0, 0
	for r := range v.runs {
		src := v.values[srcOff : srcOff+srcLengths[r]]
		dst := values[dstOff : dstOff+dstLengths[r]]
		if len(src) > 0 {
			for i := range dst {
				pos := float64(i) * ratio
				if method == Linear {
					dst[i] = interpolate(src, pos)
				} else {
					dst[i] = src[clamp(int(math.Round(pos)), 0, len(src)-1)]
				}
			}
		}
		srcOff += srcLengths[r]
		dstOff += dstLengths[r]
	}

	return &DenseVariable{
		name:   v.name,
		values: values,
		rate:   rate,
		runs:   cloneRuns(v.runs),
	}
}

func interpolate(src []float64, pos float64) float64 {
	lo := int(math.Floor(pos))
	if lo >= len(src)-1 {
		return src[len(src)-1]
	}
	if lo < 0 {
		return src[0]
	}
	frac := pos - float64(lo)
	return src[lo]*(1-frac) + src[lo+1]*frac
}

func clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

// Dummies expands a categorical variable into one numeric sparse variable per
// level, named "<name>.<level>", with amplitude 1 on that level's events and
// the original runs. Numeric variables return themselves.
func Dummies(v *SparseVariable) []*SparseVariable {
	if !v.categorical {
		return []*SparseVariable{v.Clone().(*SparseVariable)}
	}
	levels := v.Levels()
	out := make([]*SparseVariable, 0, len(levels))
	for _, level := range levels {
		var events []Event
		for _, ev := range v.events {
			if ev.Label == level {
				events = append(events, Event{Onset: ev.Onset, Duration: ev.Duration, Amplitude: 1, Run: ev.Run})
			}
		}
		out = append(out, &SparseVariable{
			name:   v.name + "." + level,
			events: events,
			runs:   cloneRuns(v.runs),
		})
	}
	return out
}
