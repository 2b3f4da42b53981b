// Package variables manages the experimental-design variables recorded for
// neuroimaging acquisition runs.
//
// A Variable is either sparse, a list of events with onset, duration and
// amplitude (or a label for categorical variables such as trial_type), or
// dense, a series sampled at a fixed rate. Every variable remembers the runs
// it spans and their entities (subject, session, task, run, ...).
//
// A Collection groups uniquely named variables under one representative
// sampling rate. Collections are resampled to dense form, merged across runs
// and exported to a columnar.Table in wide or long layout:
//
//	runs, _ := variables.BuildRunCollections(raw, variables.BuildOptions{ScanLength: 480})
//	merged, _ := variables.Merge(runs...)
//	dense, _ := merged.Resampled(variables.ResampleOptions{ForceDense: true})
//	table, _ := dense.ToTable(variables.ExportOptions{Density: variables.Dense})
//
// Failures are *errors.Error values from pkg/errors carrying one of the
// engine's error types; compare them with errors.Is against the sentinels.
// Nothing in this package logs or retries.
package variables
