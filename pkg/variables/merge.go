package variables

import (
	"github.com/ajitpratap0/runvars/pkg/errors"
)

// Merge combines collections, typically one per run, into one. Variables
// that share a name are concatenated in input order with MergeVariables;
// variable order follows first appearance. The merged collection takes the
// first input's sampling rate. Its entities are the consensus of all runs,
// so a key that differs between inputs (usually run) drops out.
func Merge(collections ...*Collection) (*Collection, error) {
	if len(collections) == 0 {
		return nil, errors.New(errors.ErrorTypeIncompatibleCollections, "no collections to merge")
	}

	var names []string
	groups := make(map[string][]Variable)
	for i, c := range collections {
		if c == nil {
			return nil, errors.Newf(errors.ErrorTypeIncompatibleCollections, "collection %d is nil", i)
		}
		for _, name := range c.names {
			if _, seen := groups[name]; !seen {
				names = append(names, name)
			}
			groups[name] = append(groups[name], c.variables[name])
		}
	}

	merged := make([]Variable, 0, len(names))
	for _, name := range names {
		v, err := MergeVariables(groups[name]...)
		if err != nil {
			return nil, err
		}
		merged = append(merged, v)
	}
	return NewCollection(merged, collections[0].samplingRate)
}

// MergeVariables concatenates same-named variables. All inputs must have the
// same density; sparse inputs must agree on being categorical and dense
// inputs on sampling rate. Sparse onsets stay run-relative: events keep
// pointing at their own run, whose index is shifted into the merged run list.
func MergeVariables(vars ...Variable) (Variable, error) {
	if len(vars) == 0 {
		return nil, errors.New(errors.ErrorTypeIncompatibleCollections, "no variables to merge")
	}
	first := vars[0]
	for _, v := range vars[1:] {
		if v.Name() != first.Name() {
			return nil, errors.Newf(errors.ErrorTypeIncompatibleCollections, "cannot merge variable %q with %q", first.Name(), v.Name())
		}
		if v.Density() != first.Density() {
			return nil, errors.Newf(errors.ErrorTypeIncompatibleCollections,
				"variable %q is %s in one collection and %s in another; resample to a common representation first",
				first.Name(), first.Density(), v.Density()).
				WithDetail("variable", first.Name())
		}
	}

	switch first.Density() {
	case Sparse:
		return mergeSparse(vars)
	case Dense:
		return mergeDense(vars)
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "variable %q has unknown density %s", first.Name(), first.Density())
	}
}

func mergeSparse(vars []Variable) (*SparseVariable, error) {
	head, _ := AsSparse(vars[0])
	total := 0
	for _, v := range vars {
		total += v.Len()
	}

	out := &SparseVariable{
		name:        head.name,
		events:      make([]Event, 0, total),
		categorical: head.categorical,
	}
	for _, v := range vars {
		s, _ := AsSparse(v)
		if s.categorical != head.categorical {
			return nil, errors.Newf(errors.ErrorTypeIncompatibleCollections,
				"variable %q is categorical in one collection and numeric in another", head.name).
				WithDetail("variable", head.name)
		}
		shift := len(out.runs)
		for _, ev := range s.events {
			ev.Run += shift
			out.events = append(out.events, ev)
		}
		out.runs = append(out.runs, cloneRuns(s.runs)...)
	}
	return out, nil
}

func mergeDense(vars []Variable) (*DenseVariable, error) {
	head, _ := AsDense(vars[0])
	total := 0
	for _, v := range vars {
		d, _ := AsDense(v)
		if d.rate != head.rate {
			return nil, errors.Newf(errors.ErrorTypeSamplingRateMismatch,
				"variable %q is sampled at %g Hz in one collection and %g Hz in another", head.name, head.rate, d.rate).
				WithDetail("variable", head.name)
		}
		total += len(d.values)
	}

	out := &DenseVariable{
		name:   head.name,
		values: make([]float64, 0, total),
		rate:   head.rate,
	}
	for _, v := range vars {
		d, _ := AsDense(v)
		out.values = append(out.values, d.values...)
		out.runs = append(out.runs, cloneRuns(d.runs)...)
	}
	return out, nil
}
