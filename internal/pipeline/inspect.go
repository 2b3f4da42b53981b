package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/runvars/pkg/logger"
	"github.com/ajitpratap0/runvars/pkg/variables"
)

// Summary describes the merged collection without exporting it.
type Summary struct {
	SamplingRate float64            `json:"sampling_rate" yaml:"sampling_rate"`
	Runs         int                `json:"runs" yaml:"runs"`
	Entities     variables.Entities `json:"entities" yaml:"entities"`
	Variables    []VariableSummary  `json:"variables" yaml:"variables"`
}

// VariableSummary describes one merged variable.
type VariableSummary struct {
	Name         string   `json:"name" yaml:"name"`
	Density      string   `json:"density" yaml:"density"`
	Categorical  bool     `json:"categorical,omitempty" yaml:"categorical,omitempty"`
	Length       int      `json:"length" yaml:"length"`
	Runs         int      `json:"runs" yaml:"runs"`
	SamplingRate float64  `json:"sampling_rate,omitempty" yaml:"sampling_rate,omitempty"`
	Levels       []string `json:"levels,omitempty" yaml:"levels,omitempty"`
}

// Inspect loads, builds and merges the manifests and summarizes the result.
func (p *Pipeline) Inspect(ctx context.Context) (*Summary, error) {
	ctx = logger.ContextWith(ctx, logger.JobIDKey, p.cfg.Name)
	runs, err := p.build(ctx)
	if err != nil {
		return nil, err
	}
	merged, err := p.merge(ctx, runs)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		SamplingRate: merged.SamplingRate(),
		Runs:         len(runs),
		Entities:     merged.Entities(),
	}
	vars := merged.Variables()
	names := merged.Names()
	sort.Strings(names)
	for _, name := range names {
		v := vars[name]
		vs := VariableSummary{
			Name:    name,
			Density: v.Density().String(),
			Length:  v.Len(),
			Runs:    len(v.Runs()),
		}
		if sv, ok := variables.AsSparse(v); ok {
			vs.Categorical = sv.Categorical()
			if vs.Categorical {
				vs.Levels = sv.Levels()
			}
		}
		if dv, ok := variables.AsDense(v); ok {
			vs.SamplingRate = dv.SamplingRate()
		}
		out.Variables = append(out.Variables, vs)
	}
	p.metrics.MarkSuccess()
	logger.WithContext(ctx).Info("inspection completed",
		zap.Int("runs", out.Runs),
		zap.Int("variables", len(out.Variables)))
	return out, nil
}
