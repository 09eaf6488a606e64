// Copyright Abx Labs Ltd., 2026. All rights reserved.

package cohort

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/abxlab/amrscope/internal/ingest"
	"github.com/abxlab/amrscope/internal/kb"
	"github.com/abxlab/amrscope/pkg/types"
)

// Pipeline runs normalize, merge, and classify for every sample.
type Pipeline struct {
	Normalizer *Normalizer
	Merger     *Merger
	Classifier *Classifier

	// Workers bounds the per-sample pool. Zero means one per CPU.
	Workers int
}

// NewPipeline wires the per-sample stages from one config.
func NewPipeline(k *kb.KB, cfg types.PipelineConfig) *Pipeline {
	return &Pipeline{
		Normalizer: &Normalizer{KB: k, Cfg: cfg.Normalize},
		Merger:     &Merger{Cfg: cfg.Merge},
		Classifier: &Classifier{Cfg: cfg.Classify},
		Workers:    cfg.Workers,
	}
}

// Result is the joined output of the per-sample phase.
type Result struct {
	// Profiles holds the finished profile of every included sample.
	Profiles map[string]types.SampleProfile

	// Excluded lists samples dropped as malformed, with reasons.
	Excluded []types.ExcludedSample

	// RejectedHits counts raw hits dropped at the quality thresholds.
	RejectedHits int

	// UnresolvedGenes counts registry misses by reported identifier.
	UnresolvedGenes map[string]int

	// DiscrepantMerges counts merged hits carrying a tool disagreement.
	DiscrepantMerges int
}

// sampleStats tallies what one worker absorbed for its sample.
type sampleStats struct {
	rejected   int
	unresolved map[string]int
	discrepant int
}

// workerOut is one worker's slot. Each worker writes only its own index,
// so the phase needs no locks; the errgroup Wait is the barrier the
// cohort-wide phases require.
type workerOut struct {
	profile  types.SampleProfile
	stats    sampleStats
	excluded *types.ExcludedSample
}

// Run processes every sample on the worker pool and folds the results in
// deterministic sample order. A malformed sample is excluded and reported,
// never fatal; only context cancellation aborts the run. Progress is
// written to w after the barrier so output order is stable.
func (p *Pipeline) Run(ctx context.Context, inputs []ingest.SampleInput, w io.Writer) (*Result, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outs := make([]workerOut, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range inputs {
		i := i // per-iteration copy: the go directive predates Go 1.22 loop-variable scoping
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			in := inputs[i]
			if in.Empty() && len(in.Problems) > 0 {
				outs[i].excluded = &types.ExcludedSample{
					SampleID: in.SampleID,
					Reason:   fmt.Sprintf("all input files failed to parse: %s", in.Problems[0]),
				}
				return nil
			}
			outs[i].profile, outs[i].stats = p.buildProfile(in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("per-sample phase: %w", err)
	}

	res := &Result{
		Profiles:        make(map[string]types.SampleProfile, len(inputs)),
		UnresolvedGenes: make(map[string]int),
	}
	for _, out := range outs {
		if out.excluded != nil {
			res.Excluded = append(res.Excluded, *out.excluded)
			fmt.Fprintf(w, "  excluded %s: %s\n", out.excluded.SampleID, out.excluded.Reason)
			continue
		}
		res.Profiles[out.profile.SampleID] = out.profile
		res.RejectedHits += out.stats.rejected
		res.DiscrepantMerges += out.stats.discrepant
		for gene, n := range out.stats.unresolved {
			res.UnresolvedGenes[gene] += n
		}
		fmt.Fprintf(w, "  profiled %s: %d hit(s), tier %s\n",
			out.profile.SampleID, len(out.profile.Hits), out.profile.Tier)
	}
	return res, nil
}

// buildProfile runs the per-sample stages over one input. The worker owns
// the candidate set exclusively; nothing here touches shared state.
func (p *Pipeline) buildProfile(in ingest.SampleInput) (types.SampleProfile, sampleStats) {
	stats := sampleStats{unresolved: make(map[string]int)}

	cands := make([]Candidate, 0, len(in.Hits))
	for _, raw := range in.Hits {
		cand, outcome := p.Normalizer.Normalize(raw)
		switch outcome {
		case RejectedQuality:
			stats.rejected++
		case DroppedUnresolved:
			stats.unresolved[raw.Gene]++
		case Accepted:
			if cand.Unresolved {
				stats.unresolved[raw.Gene]++
			}
			cands = append(cands, cand)
		}
	}

	hits := p.Merger.Merge(in.SampleID, cands)
	for _, h := range hits {
		if h.Discrepancy != nil {
			stats.discrepant++
		}
	}

	return p.Classifier.Classify(in.SampleID, hits, in.Typing), stats
}
