package variables

import (
	"sort"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

// DefaultSamplingRate is the representative rate of a collection when none
// is configured.
const DefaultSamplingRate = 10.0

// Collection is an ordered set of uniquely named variables bound to one run
// context (or, after Merge, to a group of runs). It is not safe for
// concurrent mutation; use Clone to hand independent copies to goroutines.
type Collection struct {
	names        []string
	variables    map[string]Variable
	samplingRate float64
}

// NewCollection builds a collection. Variables keep the given order.
func NewCollection(vars []Variable, samplingRate float64) (*Collection, error) {
	if err := checkRate(samplingRate); err != nil {
		return nil, err
	}
	c := &Collection{
		names:        make([]string, 0, len(vars)),
		variables:    make(map[string]Variable, len(vars)),
		samplingRate: samplingRate,
	}
	for i, v := range vars {
		if v == nil {
			return nil, errors.Newf(errors.ErrorTypeMalformedVariable, "variable %d is nil", i)
		}
		if _, exists := c.variables[v.Name()]; exists {
			return nil, malformed(v.Name(), "duplicate variable name in collection")
		}
		c.names = append(c.names, v.Name())
		c.variables[v.Name()] = v
	}
	return c, nil
}

// SamplingRate is the default target rate for densification.
func (c *Collection) SamplingRate() float64 { return c.samplingRate }

// Len returns the number of variables.
func (c *Collection) Len() int { return len(c.names) }

// Names returns variable names in collection order.
func (c *Collection) Names() []string { return append([]string(nil), c.names...) }

// Variables returns the name → variable mapping. The map is a copy; the
// variables are shared with the collection.
func (c *Collection) Variables() map[string]Variable {
	out := make(map[string]Variable, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// Variable looks up a variable by name.
func (c *Collection) Variable(name string) (Variable, bool) {
	v, ok := c.variables[name]
	return v, ok
}

// SparseVariables returns the sparse variables in collection order.
func (c *Collection) SparseVariables() []*SparseVariable {
	var out []*SparseVariable
	for _, name := range c.names {
		if s, ok := AsSparse(c.variables[name]); ok {
			out = append(out, s)
		}
	}
	return out
}

// DenseVariables returns the dense variables in collection order.
func (c *Collection) DenseVariables() []*DenseVariable {
	var out []*DenseVariable
	for _, name := range c.names {
		if d, ok := AsDense(c.variables[name]); ok {
			out = append(out, d)
		}
	}
	return out
}

// Entities returns the pairs every variable agrees on. Keys missing from
// some variable or carrying different values are dropped.
func (c *Collection) Entities() Entities {
	sets := make([]Entities, 0, len(c.names))
	for _, name := range c.names {
		sets = append(sets, c.variables[name].Entities())
	}
	return Consensus(sets...)
}

// Clone returns a deep copy sharing no backing storage with c.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		names:        append([]string(nil), c.names...),
		variables:    make(map[string]Variable, len(c.variables)),
		samplingRate: c.samplingRate,
	}
	for k, v := range c.variables {
		out.variables[k] = v.Clone()
	}
	return out
}

// ResampleOptions controls Resample, Resampled and ResampleInPlace.
type ResampleOptions struct {
	// Rate is the target in Hz. Zero uses the collection's sampling rate.
	Rate float64
	// ForceDense densifies sparse variables too. Without it only variables
	// that are already dense are resampled and returned.
	ForceDense bool
	// Method maps dense samples onto the new rate.
	Method Method
	// Variables restricts the operation to these names. Empty means all.
	Variables []string
	// ExpandCategorical replaces each categorical variable, when densifying,
	// with one binary dense variable per level instead of passing it over.
	ExpandCategorical bool
}

func (c *Collection) targetRate(opts ResampleOptions) (float64, error) {
	rate := opts.Rate
	if rate == 0 {
		rate = c.samplingRate
	}
	return rate, checkRate(rate)
}

func (c *Collection) selected(only []string) ([]string, error) {
	if len(only) == 0 {
		return c.names, nil
	}
	for _, name := range only {
		if _, ok := c.variables[name]; !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "collection has no variable %q", name).
				WithDetail("variable", name)
		}
	}
	want := make(map[string]bool, len(only))
	for _, name := range only {
		want[name] = true
	}
	var out []string
	for _, name := range c.names {
		if want[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

type resampled struct {
	// replaces is the source variable name the outputs stand in for.
	replaces string
	outputs  []*DenseVariable
}

func (c *Collection) resample(opts ResampleOptions) ([]resampled, float64, error) {
	rate, err := c.targetRate(opts)
	if err != nil {
		return nil, 0, err
	}
	names, err := c.selected(opts.Variables)
	if err != nil {
		return nil, 0, err
	}

	var out []resampled
	for _, name := range names {
		v := c.variables[name]
		switch v.Density() {
		case Dense:
			d, _ := AsDense(v)
			out = append(out, resampled{replaces: name, outputs: []*DenseVariable{rerate(d, rate, opts.Method)}})
		case Sparse:
			if !opts.ForceDense {
				continue
			}
			s, _ := AsSparse(v)
			if s.Categorical() && !opts.ExpandCategorical {
				continue
			}
			r := resampled{replaces: name}
			for _, part := range Dummies(s) {
				d, err := densify(part, rate)
				if err != nil {
					return nil, 0, err
				}
				r.outputs = append(r.outputs, d)
			}
			out = append(out, r)
		}
	}
	if err := c.checkCollisions(out); err != nil {
		return nil, 0, err
	}
	return out, rate, nil
}

// checkCollisions fails when a resampled output would share its name with
// another output or with a variable it does not replace.
func (c *Collection) checkCollisions(results []resampled) error {
	replaced := make(map[string]bool, len(results))
	for _, r := range results {
		replaced[r.replaces] = true
	}
	taken := make(map[string]bool, len(c.names))
	for _, name := range c.names {
		if !replaced[name] {
			taken[name] = true
		}
	}
	for _, r := range results {
		for _, d := range r.outputs {
			if taken[d.name] {
				return malformed(d.name, "expanded level collides with an existing variable")
			}
			taken[d.name] = true
		}
	}
	return nil
}

// Resample returns the resampled variables keyed by name and leaves c
// untouched. Without ForceDense the result holds only variables that were
// already dense. With ForceDense it holds one dense variable per numeric
// variable; categorical variables are left out unless ExpandCategorical is
// set.
func (c *Collection) Resample(opts ResampleOptions) (map[string]Variable, error) {
	results, _, err := c.resample(opts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Variable)
	for _, r := range results {
		for _, d := range r.outputs {
			out[d.Name()] = d
		}
	}
	return out, nil
}

// Resampled returns a new collection equal to c after ResampleInPlace.
func (c *Collection) Resampled(opts ResampleOptions) (*Collection, error) {
	out := c.Clone()
	if err := out.ResampleInPlace(opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ResampleInPlace replaces every resampled variable with its dense form and
// sets the collection rate to the target. Variables that were not resampled
// stay as they are. Every result is computed before anything is replaced,
// so on error c is unchanged.
func (c *Collection) ResampleInPlace(opts ResampleOptions) error {
	results, rate, err := c.resample(opts)
	if err != nil {
		return err
	}

	byName := make(map[string]resampled, len(results))
	for _, r := range results {
		byName[r.replaces] = r
	}

	names := make([]string, 0, len(c.names))
	variables := make(map[string]Variable, len(c.variables))
	add := func(v Variable) error {
		if _, exists := variables[v.Name()]; exists {
			return malformed(v.Name(), "expanded level collides with an existing variable")
		}
		names = append(names, v.Name())
		variables[v.Name()] = v
		return nil
	}
	for _, name := range c.names {
		r, ok := byName[name]
		if !ok {
			if err := add(c.variables[name]); err != nil {
				return err
			}
			continue
		}
		for _, d := range r.outputs {
			if err := add(d); err != nil {
				return err
			}
		}
	}

	c.names = names
	c.variables = variables
	c.samplingRate = rate
	return nil
}

// sortedNames returns the variable names in lexical order.
func sortedNames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
