package variables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/runvars/pkg/columnar"
	"github.com/ajitpratap0/runvars/pkg/errors"
)

func mergedRuns(t *testing.T, withDense bool) *Collection {
	t.Helper()
	// run 2 first, so sorting has work to do
	merged, err := Merge(runCollection(t, "01", "2", withDense), runCollection(t, "01", "1", withDense))
	require.NoError(t, err)
	return merged
}

func column(t *testing.T, tbl *columnar.Table, name string) []interface{} {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, "missing column %q", name)
	out := make([]interface{}, col.Len())
	for i := range out {
		out[i] = col.Get(i)
	}
	return out
}

func TestToTable_SparseWide(t *testing.T) {
	tbl, err := mergedRuns(t, true).ToTable(ExportOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"onset", "duration", "subject", "task", "run", "gain", "loss", "trial_type"}, tbl.ColumnNames(),
		"dense variables are left out of sparse exports")
	assert.Equal(t, 4, tbl.NumRows())

	assert.Equal(t, []interface{}{"1", "1", "2", "2"}, column(t, tbl, "run"))
	assert.Equal(t, []interface{}{0.0, 2.0, 0.0, 2.0}, column(t, tbl, "onset"))
	assert.Equal(t, []interface{}{10.0, 20.0, 10.0, 20.0}, column(t, tbl, "gain"))
	assert.Equal(t, []interface{}{5.0, nil, 5.0, nil}, column(t, tbl, "loss"))
	assert.Equal(t, []interface{}{"gamble", "control", "gamble", "control"}, column(t, tbl, "trial_type"))
}

func TestToTable_SparseLong(t *testing.T) {
	tbl, err := mergedRuns(t, false).ToTable(ExportOptions{Format: Long})
	require.NoError(t, err)

	assert.Equal(t, []string{"onset", "duration", "amplitude", "condition", "subject", "task", "run"}, tbl.ColumnNames())
	assert.Equal(t, 10, tbl.NumRows(), "one row per event per variable")

	amp, _ := tbl.Column("amplitude")
	assert.Equal(t, columnar.ColumnTypeMixed, amp.Type())

	assert.Equal(t,
		[]interface{}{"gain", "loss", "trial_type", "gain", "trial_type", "gain", "loss", "trial_type", "gain", "trial_type"},
		column(t, tbl, "condition"))
	assert.Equal(t,
		[]interface{}{10.0, 5.0, "gamble", 20.0, "control", 10.0, 5.0, "gamble", 20.0, "control"},
		column(t, tbl, "amplitude"))
}

func TestToTable_DenseWide(t *testing.T) {
	c := mergedRuns(t, true)
	tbl, err := c.ToTable(ExportOptions{Density: Dense, Rate: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"onset", "duration", "subject", "task", "run", "gain", "loss", "respiration"}, tbl.ColumnNames())
	assert.Equal(t, 16, tbl.NumRows(), "two runs of 4 s at 2 Hz")

	onset := column(t, tbl, "onset")
	assert.Equal(t, []interface{}{0.0, 0.5, 1.0, 1.5, 2.0, 2.5, 3.0, 3.5}, onset[:8])
	assert.Equal(t, 0.5, column(t, tbl, "duration")[3])
	assert.Equal(t, []interface{}{10.0, 10.0, 0.0, 0.0, 20.0, 20.0, 0.0, 0.0}, column(t, tbl, "gain")[:8])
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0}, column(t, tbl, "respiration")[8:])

	assert.Len(t, c.DenseVariables(), 1, "export does not resample the collection itself")
}

func TestToTable_DenseLong(t *testing.T) {
	tbl, err := mergedRuns(t, true).ToTable(ExportOptions{Density: Dense, Format: Long, Rate: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"onset", "duration", "amplitude", "condition", "subject", "task", "run"}, tbl.ColumnNames())
	assert.Equal(t, 48, tbl.NumRows())

	amp, _ := tbl.Column("amplitude")
	assert.Equal(t, columnar.ColumnTypeFloat, amp.Type())

	row, err := tbl.Row(2)
	require.NoError(t, err)
	assert.Equal(t, "respiration", row["condition"])
	assert.Equal(t, 1.0, row["amplitude"])
	assert.Equal(t, "1", row["run"])
}

func TestToTable_Variables(t *testing.T) {
	c := mergedRuns(t, true)

	tbl, err := c.ToTable(ExportOptions{Variables: []string{"gain"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"onset", "duration", "subject", "task", "run", "gain"}, tbl.ColumnNames())

	dense, err := c.ToTable(ExportOptions{Density: Dense, Variables: []string{"respiration"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"onset", "duration", "subject", "task", "run", "respiration"}, dense.ColumnNames())
	assert.Equal(t, 80, dense.NumRows())

	_, err = c.ToTable(ExportOptions{Variables: []string{"nope"}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestToTable_EntityUnion(t *testing.T) {
	full := runCollection(t, "01", "1", false)
	bare, err := NewCollection([]Variable{
		mustSparse(t, "gain", []Event{{Onset: 1, Duration: 1, Amplitude: 3}}, RunInfo{Entities: Entities{"subject": "02"}, Duration: 4}),
	}, 10)
	require.NoError(t, err)

	merged, err := Merge(bare, full)
	require.NoError(t, err)
	tbl, err := merged.ToTable(ExportOptions{Variables: []string{"gain"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"onset", "duration", "subject", "task", "run", "gain"}, tbl.ColumnNames())
	assert.Equal(t, []interface{}{"01", "01", "02"}, column(t, tbl, "subject"))
	assert.Equal(t, []interface{}{"1", "1", nil}, column(t, tbl, "run"))
}

func TestToTable_Deterministic(t *testing.T) {
	c := mergedRuns(t, true)
	for _, opts := range []ExportOptions{
		{},
		{Format: Long},
		{Density: Dense, Rate: 2},
		{Density: Dense, Format: Long, Rate: 2},
	} {
		a, err := c.ToTable(opts)
		require.NoError(t, err)
		b, err := c.ToTable(opts)
		require.NoError(t, err)
		assert.True(t, a.Equal(b), "%+v", opts)
	}
}

func TestToTable_MergeRoundTrip(t *testing.T) {
	r1 := runCollection(t, "01", "1", true)
	r2 := runCollection(t, "01", "2", true)
	merged, err := Merge(r2, r1)
	require.NoError(t, err)

	for _, opts := range []ExportOptions{{}, {Format: Long}, {Density: Dense, Format: Long}} {
		whole, err := merged.ToTable(opts)
		require.NoError(t, err)

		t1, err := r1.ToTable(opts)
		require.NoError(t, err)
		t2, err := r2.ToTable(opts)
		require.NoError(t, err)
		joined, err := columnar.Concat(t2, t1)
		require.NoError(t, err)
		keys := []string{"subject", "task", "run", "onset", "duration"}
		if opts.Format == Long {
			keys = append(keys, "condition")
		}
		sorted, err := joined.SortBy(keys...)
		require.NoError(t, err)

		assert.True(t, whole.Equal(sorted), "%+v", opts)
	}
}

func TestToTable_Empty(t *testing.T) {
	c, err := NewCollection(nil, 10)
	require.NoError(t, err)

	tbl, err := c.ToTable(ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"onset", "duration"}, tbl.ColumnNames())
	assert.Equal(t, 0, tbl.NumRows())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("long")
	require.NoError(t, err)
	assert.Equal(t, Long, f)
	assert.Equal(t, "long", f.String())

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, Wide, f)

	_, err = ParseFormat("tall")
	assert.Error(t, err)
}

func TestParseDensityAndMethod(t *testing.T) {
	d, err := ParseDensity("dense")
	require.NoError(t, err)
	assert.Equal(t, Dense, d)
	_, err = ParseDensity("packed")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	m, err := ParseMethod("linear")
	require.NoError(t, err)
	assert.Equal(t, Linear, m)
	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, Nearest, m)
	_, err = ParseMethod("cubic")
	assert.Error(t, err)
}

func TestToTable_RepeatedEvents(t *testing.T) {
	runs := []RunInfo{run("01", "1", 10)}
	a, err := NewSparseVariable("a", []Event{
		{Onset: 1, Duration: 1, Amplitude: 5},
		{Onset: 1, Duration: 1, Amplitude: 7},
		{Onset: 3, Duration: 1, Amplitude: 2},
	}, runs)
	require.NoError(t, err)
	b, err := NewSparseVariable("b", []Event{{Onset: 1, Duration: 1, Amplitude: 9}}, runs)
	require.NoError(t, err)
	c, err := NewCollection([]Variable{a, b}, 10)
	require.NoError(t, err)

	wide, err := c.ToTable(ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, wide.NumRows(), "repeated events keep their own rows")
	assert.Equal(t, []interface{}{1.0, 1.0, 3.0}, column(t, wide, "onset"))
	assert.Equal(t, []interface{}{5.0, 7.0, 2.0}, column(t, wide, "a"))
	assert.Equal(t, []interface{}{9.0, nil, nil}, column(t, wide, "b"))

	long, err := c.ToTable(ExportOptions{Format: Long})
	require.NoError(t, err)
	assert.Equal(t, 4, long.NumRows())
}

func TestToTable_ColumnCollision(t *testing.T) {
	runs := []RunInfo{run("01", "1", 10)}
	for _, name := range []string{"onset", "subject"} {
		v, err := NewSparseVariable(name, []Event{{Onset: 0, Duration: 1, Amplitude: 1}}, runs)
		require.NoError(t, err)
		c, err := NewCollection([]Variable{v}, 10)
		require.NoError(t, err)

		_, err = c.ToTable(ExportOptions{})
		require.Error(t, err, name)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), name)
		assert.Contains(t, err.Error(), `"`+name+`"`)

		// long format keeps variable names in the condition column
		_, err = c.ToTable(ExportOptions{Format: Long})
		assert.NoError(t, err, name)
	}
}
