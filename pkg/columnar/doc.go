// Package columnar implements the typed, column-oriented table that
// collections are exported into.
//
// # Overview
//
// A Table is an ordered list of equal-length columns. Three column types
// exist:
//   - StringColumn: dictionary encoded strings (entity values, labels)
//   - FloatColumn: float64 values, NaN marks a missing cell
//   - MixedColumn: float64 or string per cell
//
// Tables are immutable from the outside once built: SortBy, Take, Clone and
// Concat return new tables.
//
// # Usage Example
//
//	onset := columnar.NewFloatColumnFrom("onset", []float64{0, 4, 8})
//	subject := columnar.NewStringColumn("subject", 3)
//	subject.AppendRepeated("01", 3)
//
//	tbl, err := columnar.NewTable(onset, subject)
//	if err != nil {
//		return err
//	}
//	sorted, _ := tbl.SortBy("subject", "onset")
//	rows, cols := sorted.Shape()
//
// # Ordering
//
// Compare defines the row order used by SortBy and by the variable exporter:
// missing values sort last, floats before strings, and strings that both
// parse as numbers compare numerically, so run "2" sorts before run "10".
package columnar
