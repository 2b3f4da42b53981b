package testutil

import (
	"fmt"
	"strconv"

	"github.com/ajitpratap0/runvars/pkg/variables"
)

// Shape of the synthetic mixed-gambles dataset returned by DS005.
const (
	DS005Subjects   = 16
	DS005RunsPerSub = 3
	DS005ScanLength = 480.0
	DS005Trials     = 86
	DS005Task       = "mixedgamblestask"
	// DS005TrialSpacing is the onset step between trials, in seconds.
	DS005TrialSpacing = 4.0
	// DS005TrialDuration is every trial's duration, in seconds.
	DS005TrialDuration = 3.0
)

// DS005Numeric lists the numeric variables of every DS005 run, in
// definition order. trial_type follows them as the only categorical one.
var DS005Numeric = []string{"parametric gain", "gain", "loss", "PTval", "respnum", "respcat", "RT"}

// DS005Variables is the number of variables per run.
var DS005Variables = len(DS005Numeric) + 1

// DS005 returns raw runs shaped like the OpenNeuro ds005 mixed-gambles
// events: every subject has DS005RunsPerSub runs of DS005Trials trials,
// each with seven numeric variables and a trial_type label. Values are
// deterministic functions of subject, run and trial. Run durations are left
// unknown so callers supply DS005ScanLength through BuildOptions.
func DS005(subjects int) []variables.RawRun {
	runs := make([]variables.RawRun, 0, subjects*DS005RunsPerSub)
	for s := 1; s <= subjects; s++ {
		for r := 1; r <= DS005RunsPerSub; r++ {
			runs = append(runs, ds005Run(s, r))
		}
	}
	return runs
}

func ds005Run(subject, run int) variables.RawRun {
	onsets := make([]float64, DS005Trials)
	durations := make([]float64, DS005Trials)
	labels := make([]string, DS005Trials)
	columns := make(map[string][]float64, len(DS005Numeric))
	for _, name := range DS005Numeric {
		columns[name] = make([]float64, DS005Trials)
	}

	for i := 0; i < DS005Trials; i++ {
		onsets[i] = float64(i) * DS005TrialSpacing
		durations[i] = DS005TrialDuration

		gain := float64(10 + (i*7+subject)%31)
		loss := float64(5 + (i*3+run)%16)
		columns["gain"][i] = gain
		columns["loss"][i] = loss
		columns["parametric gain"][i] = gain - 25
		columns["PTval"][i] = gain - loss
		columns["respnum"][i] = float64((i + subject + run) % 5)
		columns["respcat"][i] = float64((i + subject) % 2)
		columns["RT"][i] = 1 + float64((i*13+subject*7+run)%100)/100

		if (i+run)%2 == 0 {
			labels[i] = "gamble"
		} else {
			labels[i] = "control"
		}
	}

	vars := make([]variables.RawVariable, 0, DS005Variables)
	for _, name := range DS005Numeric {
		vars = append(vars, variables.RawVariable{
			Name:      name,
			Onset:     onsets,
			Duration:  durations,
			Amplitude: columns[name],
		})
	}
	vars = append(vars, variables.RawVariable{
		Name:     "trial_type",
		Onset:    onsets,
		Duration: durations,
		Labels:   labels,
	})

	return variables.RawRun{
		Entities: variables.Entities{
			"subject": fmt.Sprintf("%02d", subject),
			"task":    DS005Task,
			"run":     strconv.Itoa(run),
		},
		Variables: vars,
	}
}
