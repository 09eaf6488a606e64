// Copyright Abx Labs Ltd., 2026. All rights reserved.

// Package dataset assembles, checks, persists, and exports the cohort
// dataset. Assembly composes the outputs of the earlier stages; no
// resistance logic lives here.
package dataset

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abxlab/amrscope/internal/cohort"
	"github.com/abxlab/amrscope/internal/ingest"
	"github.com/abxlab/amrscope/internal/pattern"
	"github.com/abxlab/amrscope/pkg/types"
)

// ErrInvariant marks a dataset that failed assembly-time consistency
// checks. It is fatal: a dataset that fails these checks must never be
// exported or stored.
var ErrInvariant = errors.New("dataset invariant violation")

// Build composes the final dataset from the pipeline result, the pattern
// analysis, and the ingestion summary, then verifies its invariants.
func Build(res *cohort.Result, analysis *pattern.Analysis, summary ingest.Summary) (*types.CohortDataset, error) {
	ds := &types.CohortDataset{
		RunID:               uuid.NewString(),
		CreatedAt:           time.Now().UTC(),
		TotalSamples:        len(res.Profiles) + len(res.Excluded),
		IncludedSamples:     len(res.Profiles),
		GeneCarriers:        analysis.GeneCarriers,
		Profiles:            res.Profiles,
		Patterns:            analysis.Patterns,
		Prevalence:          analysis.Prevalence,
		TopPairs:            analysis.TopPairs,
		CarbapenemaseCombos: analysis.CarbapenemaseCombos,
		STDistribution:      analysis.STDistribution,
		KLocusDistribution:  analysis.KLocusDistribution,
		DatabaseCoverage:    analysis.DatabaseCoverage,
		Diagnostics: types.Diagnostics{
			Excluded:         res.Excluded,
			FailedFiles:      summary.FailedFiles,
			UnresolvedGenes:  res.UnresolvedGenes,
			RejectedHits:     res.RejectedHits,
			DiscrepantMerges: res.DiscrepantMerges,
			ParsedRecords:    summary.Records,
		},
	}

	if err := Verify(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// Verify checks the structural invariants a finished dataset must hold.
// Each violation wraps ErrInvariant.
func Verify(ds *types.CohortDataset) error {
	if ds.IncludedSamples != len(ds.Profiles) {
		return fmt.Errorf("%w: included count %d != profile count %d",
			ErrInvariant, ds.IncludedSamples, len(ds.Profiles))
	}
	if ds.TotalSamples != ds.IncludedSamples+len(ds.Diagnostics.Excluded) {
		return fmt.Errorf("%w: total %d != included %d + excluded %d",
			ErrInvariant, ds.TotalSamples, ds.IncludedSamples, len(ds.Diagnostics.Excluded))
	}

	for id, p := range ds.Profiles {
		if p.SampleID != id {
			return fmt.Errorf("%w: profile keyed %s claims sample %s", ErrInvariant, id, p.SampleID)
		}
		if p.Tier == "" {
			return fmt.Errorf("%w: sample %s has no tier", ErrInvariant, id)
		}
		seen := make(map[string]bool, len(p.Hits))
		for _, h := range p.Hits {
			if h.SampleID != id {
				return fmt.Errorf("%w: sample %s holds a hit for %s", ErrInvariant, id, h.SampleID)
			}
			if seen[h.Gene.Canonical] {
				return fmt.Errorf("%w: sample %s carries gene %s twice", ErrInvariant, id, h.Gene.Canonical)
			}
			seen[h.Gene.Canonical] = true
		}
	}

	// The carrier index and the profiles must describe the same cohort.
	for gene, samples := range ds.GeneCarriers {
		for _, id := range samples {
			p, ok := ds.Profiles[id]
			if !ok {
				return fmt.Errorf("%w: gene %s lists unknown sample %s", ErrInvariant, gene, id)
			}
			if !carriesGene(&p, gene) {
				return fmt.Errorf("%w: gene %s lists sample %s which does not carry it", ErrInvariant, gene, id)
			}
		}
	}
	for id, p := range ds.Profiles {
		for _, h := range p.Hits {
			if !containsString(ds.GeneCarriers[h.Gene.Canonical], id) {
				return fmt.Errorf("%w: sample %s carries %s but the carrier index misses it",
					ErrInvariant, id, h.Gene.Canonical)
			}
		}
	}

	return nil
}

func carriesGene(p *types.SampleProfile, gene string) bool {
	for _, h := range p.Hits {
		if h.Gene.Canonical == gene {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
