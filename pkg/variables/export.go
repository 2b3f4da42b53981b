package variables

import (
	"math"

	"github.com/ajitpratap0/runvars/pkg/columnar"
	"github.com/ajitpratap0/runvars/pkg/errors"
)

// Format selects the table layout.
type Format int

const (
	// Wide has one column per variable and one row per (entities, onset,
	// duration) unit.
	Wide Format = iota
	// Long has one row per (unit, variable) with amplitude and condition
	// columns.
	Long
)

func (f Format) String() string {
	if f == Long {
		return "long"
	}
	return "wide"
}

// ParseFormat maps "wide" or "long" to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "wide":
		return Wide, nil
	case "long":
		return Long, nil
	default:
		return Wide, errors.Newf(errors.ErrorTypeValidation, "unknown table format %q (want wide or long)", s)
	}
}

// Fixed column names of exported tables.
const (
	ColumnOnset     = "onset"
	ColumnDuration  = "duration"
	ColumnAmplitude = "amplitude"
	ColumnCondition = "condition"
)

// ExportOptions controls ToTable. The zero value exports sparse variables
// in wide format.
type ExportOptions struct {
	Density Density
	Format  Format
	// Rate is the dense export rate. Zero uses the collection rate.
	Rate   float64
	Method Method
	// Variables restricts the export to these names. Empty means all.
	Variables []string
}

// unit is one row of a wide table before the variable cells are filled.
// occurrence numbers repeats of the same (entities, onset, duration) within
// one series, so repeated events get rows of their own.
type unit struct {
	entities   string
	onset      float64
	duration   float64
	occurrence int
}

// cell is one (unit, variable) observation. key is entities.String(),
// computed once per run.
type cell struct {
	onset    float64
	duration float64
	entities Entities
	key      string
	value    interface{}
}

type series struct {
	name        string
	categorical bool
	cells       []cell
}

// ToTable exports the collection as a table.
//
// Sparse export covers sparse variables only; dense export first resamples
// the whole selection with ForceDense and covers the resulting dense
// variables, each sample becoming a unit at onset index/rate with duration
// 1/rate. Rows are ordered by entity columns, then onset and duration (and
// condition in long format).
func (c *Collection) ToTable(opts ExportOptions) (*columnar.Table, error) {
	names, err := c.selected(opts.Variables)
	if err != nil {
		return nil, err
	}

	var all []series
	switch opts.Density {
	case Sparse:
		all = c.sparseSeries(names)
	case Dense:
		all, err = c.denseSeries(names, opts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown export density %s", opts.Density)
	}

	keys := entityKeys(all)
	if err := checkColumns(all, keys, opts.Format); err != nil {
		return nil, err
	}
	var table *columnar.Table
	if opts.Format == Long {
		table, err = longTable(all, keys)
	} else {
		table, err = wideTable(all, keys)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "build table")
	}

	order := append(append([]string(nil), keys...), ColumnOnset, ColumnDuration)
	if opts.Format == Long {
		order = append(order, ColumnCondition)
	}
	sorted, err := table.SortBy(order...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "sort table")
	}
	return sorted, nil
}

// checkColumns rejects exports whose entity keys or (wide) variable names
// collide with each other or with the fixed columns.
func checkColumns(all []series, keys []string, format Format) error {
	names := []string{ColumnOnset, ColumnDuration}
	if format == Long {
		names = append(names, ColumnAmplitude, ColumnCondition)
	}
	names = append(names, keys...)
	if format != Long {
		for _, sr := range all {
			names = append(names, sr.name)
		}
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return errors.Newf(errors.ErrorTypeValidation, "export column %q is produced twice; rename the variable or entity", name).
				WithDetail("column", name)
		}
		seen[name] = true
	}
	return nil
}

func runKeys(runs []RunInfo) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.Entities.String()
	}
	return out
}

func (c *Collection) sparseSeries(names []string) []series {
	var out []series
	for _, name := range sortedNames(names) {
		s, ok := AsSparse(c.variables[name])
		if !ok {
			continue
		}
		rk := runKeys(s.runs)
		sr := series{name: name, categorical: s.categorical, cells: make([]cell, len(s.events))}
		for i, ev := range s.events {
			sr.cells[i] = cell{
				onset:    ev.Onset,
				duration: ev.Duration,
				entities: s.runs[ev.Run].Entities,
				key:      rk[ev.Run],
				value:    ev.Amplitude,
			}
			if s.categorical {
				sr.cells[i].value = ev.Label
			}
		}
		out = append(out, sr)
	}
	return out
}

func (c *Collection) denseSeries(names []string, opts ExportOptions) ([]series, error) {
	resampled, err := c.Resampled(ResampleOptions{
		Rate:       opts.Rate,
		ForceDense: true,
		Method:     opts.Method,
		Variables:  names,
	})
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}

	var out []series
	for _, name := range sortedNames(resampled.names) {
		d, ok := AsDense(resampled.variables[name])
		if !ok || !want[name] {
			continue
		}
		rk := runKeys(d.runs)
		sr := series{name: name, cells: make([]cell, 0, len(d.values))}
		step := 1 / d.rate
		pos := 0
		for r, run := range d.runs {
			n := samplesFor(run.Duration, d.rate)
			for i := 0; i < n; i++ {
				sr.cells = append(sr.cells, cell{
					onset:    float64(i) / d.rate,
					duration: step,
					entities: run.Entities,
					key:      rk[r],
					value:    d.values[pos+i],
				})
			}
			pos += n
		}
		out = append(out, sr)
	}
	return out, nil
}

// entityKeys is the canonical union of entity keys over all cells.
func entityKeys(all []series) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, sr := range all {
		last := "\x00"
		for _, cl := range sr.cells {
			if cl.key == last {
				continue
			}
			last = cl.key
			for k := range cl.entities {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
	}
	SortEntityKeys(keys)
	return keys
}

func newEntityColumns(keys []string, capacity int) []*columnar.StringColumn {
	cols := make([]*columnar.StringColumn, len(keys))
	for i, k := range keys {
		cols[i] = columnar.NewStringColumn(k, capacity)
	}
	return cols
}

func appendEntities(cols []*columnar.StringColumn, keys []string, e Entities) {
	for i, k := range keys {
		if v, ok := e[k]; ok {
			cols[i].AppendString(v)
		} else {
			cols[i].AppendNull()
		}
	}
}

func wideTable(all []series, keys []string) (*columnar.Table, error) {
	rows := make(map[unit]int)
	var units []cell
	placements := make([][]int, len(all))
	for s, sr := range all {
		placements[s] = make([]int, len(sr.cells))
		seen := make(map[unit]int)
		for i, cl := range sr.cells {
			base := unit{entities: cl.key, onset: cl.onset, duration: cl.duration}
			u := base
			u.occurrence = seen[base]
			seen[base]++
			row, ok := rows[u]
			if !ok {
				row = len(units)
				rows[u] = row
				units = append(units, cl)
			}
			placements[s][i] = row
		}
	}

	n := len(units)
	onset := columnar.NewFloatColumn(ColumnOnset, n)
	duration := columnar.NewFloatColumn(ColumnDuration, n)
	entityCols := newEntityColumns(keys, n)
	for _, u := range units {
		onset.AppendFloat(u.onset)
		duration.AppendFloat(u.duration)
		appendEntities(entityCols, keys, u.entities)
	}

	cols := make([]columnar.Column, 0, 2+len(keys)+len(all))
	cols = append(cols, onset, duration)
	for _, ec := range entityCols {
		cols = append(cols, ec)
	}
	for s, sr := range all {
		cols = append(cols, wideColumn(sr, placements[s], n))
	}
	return columnar.NewTable(cols...)
}

// wideColumn scatters a series into its rows. Rows the series does not
// reach are null.
func wideColumn(sr series, rows []int, n int) columnar.Column {
	if sr.categorical {
		labels := make([]string, n)
		set := make([]bool, n)
		for i, cl := range sr.cells {
			labels[rows[i]] = cl.value.(string)
			set[rows[i]] = true
		}
		col := columnar.NewStringColumn(sr.name, n)
		for i := range labels {
			if set[i] {
				col.AppendString(labels[i])
			} else {
				col.AppendNull()
			}
		}
		return col
	}

	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	for i, cl := range sr.cells {
		values[rows[i]] = cl.value.(float64)
	}
	return columnar.NewFloatColumnFrom(sr.name, values)
}

func longTable(all []series, keys []string) (*columnar.Table, error) {
	n := 0
	mixed := false
	for _, sr := range all {
		n += len(sr.cells)
		mixed = mixed || sr.categorical
	}

	onset := columnar.NewFloatColumn(ColumnOnset, n)
	duration := columnar.NewFloatColumn(ColumnDuration, n)
	condition := columnar.NewStringColumn(ColumnCondition, n)
	entityCols := newEntityColumns(keys, n)
	var amplitude columnar.Column
	if mixed {
		amplitude = columnar.NewMixedColumn(ColumnAmplitude, n)
	} else {
		amplitude = columnar.NewFloatColumn(ColumnAmplitude, n)
	}

	for _, sr := range all {
		condition.AppendRepeated(sr.name, len(sr.cells))
		for _, cl := range sr.cells {
			onset.AppendFloat(cl.onset)
			duration.AppendFloat(cl.duration)
			if err := amplitude.Append(cl.value); err != nil {
				return nil, err
			}
			appendEntities(entityCols, keys, cl.entities)
		}
	}

	cols := make([]columnar.Column, 0, 4+len(keys))
	cols = append(cols, onset, duration, amplitude, condition)
	for _, ec := range entityCols {
		cols = append(cols, ec)
	}
	return columnar.NewTable(cols...)
}
