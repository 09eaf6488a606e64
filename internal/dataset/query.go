// Copyright Abx Labs Ltd., 2026. All rights reserved.

package dataset

import (
	"sort"

	"github.com/abxlab/amrscope/internal/kb"
	"github.com/abxlab/amrscope/pkg/types"
)

// QueryOptions filters dataset views for reporting. Zero values mean no
// filter.
type QueryOptions struct {
	// Gene restricts rows to one gene, matched tolerantly (case and
	// punctuation variants of the canonical name).
	Gene string

	// Category restricts rows to genes or patterns of one category.
	Category types.Category

	// MinTier keeps rows at or above the given tier.
	MinTier types.RiskTier

	// Flag keeps samples carrying the named profile flag.
	Flag string

	// Limit caps the returned rows. Zero returns everything.
	Limit int
}

// IsEmpty reports whether the options apply no filter at all.
func (q QueryOptions) IsEmpty() bool {
	return q.Gene == "" && q.Category == "" && q.MinTier == "" && q.Flag == "" && q.Limit == 0
}

// FilterPrevalence returns the gene table rows matching the options,
// preserving the dataset's prevalence ordering.
func FilterPrevalence(ds *types.CohortDataset, opts QueryOptions) []types.GenePrevalence {
	want := kb.NormalizeIdentifier(opts.Gene)
	var rows []types.GenePrevalence
	for _, row := range ds.Prevalence {
		if opts.Gene != "" && kb.NormalizeIdentifier(row.Gene) != want {
			continue
		}
		if opts.Category != "" && row.Category != opts.Category {
			continue
		}
		if opts.MinTier != "" && row.Tier.Severity() < opts.MinTier.Severity() {
			continue
		}
		rows = append(rows, row)
		if opts.Limit > 0 && len(rows) == opts.Limit {
			break
		}
	}
	return rows
}

// FilterProfiles returns the sample profiles matching the options, sorted
// by sample ID.
func FilterProfiles(ds *types.CohortDataset, opts QueryOptions) []types.SampleProfile {
	want := kb.NormalizeIdentifier(opts.Gene)

	ids := ds.SampleIDs()
	var profiles []types.SampleProfile
	for _, id := range ids {
		p := ds.Profiles[id]
		if opts.MinTier != "" && p.Tier.Severity() < opts.MinTier.Severity() {
			continue
		}
		if opts.Category != "" && !p.HasCategory(opts.Category) {
			continue
		}
		if opts.Flag != "" && !p.Flags[opts.Flag] {
			continue
		}
		if opts.Gene != "" && !carriesNormalized(&p, want) {
			continue
		}
		profiles = append(profiles, p)
		if opts.Limit > 0 && len(profiles) == opts.Limit {
			break
		}
	}
	return profiles
}

// FilterPatterns returns the discovered patterns matching the options,
// preserving severity order.
func FilterPatterns(ds *types.CohortDataset, opts QueryOptions) []types.Pattern {
	var patterns []types.Pattern
	for _, p := range ds.Patterns {
		if opts.MinTier != "" && p.Severity.Severity() < opts.MinTier.Severity() {
			continue
		}
		if opts.Category != "" && !hasCategory(p.Categories, opts.Category) {
			continue
		}
		patterns = append(patterns, p)
		if opts.Limit > 0 && len(patterns) == opts.Limit {
			break
		}
	}
	return patterns
}

// CarriersOf returns the sorted sample IDs carrying the gene, matched
// tolerantly.
func CarriersOf(ds *types.CohortDataset, gene string) []string {
	want := kb.NormalizeIdentifier(gene)
	var carriers []string
	for g, samples := range ds.GeneCarriers {
		if kb.NormalizeIdentifier(g) == want {
			carriers = append(carriers, samples...)
		}
	}
	sort.Strings(carriers)
	return carriers
}

func carriesNormalized(p *types.SampleProfile, want string) bool {
	for _, h := range p.Hits {
		if kb.NormalizeIdentifier(h.Gene.Canonical) == want {
			return true
		}
	}
	return false
}

func hasCategory(cats []types.Category, c types.Category) bool {
	for _, v := range cats {
		if v == c {
			return true
		}
	}
	return false
}
