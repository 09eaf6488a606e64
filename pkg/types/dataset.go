// Copyright Abx Labs Ltd., 2026. All rights reserved.

package types

import (
	"sort"
	"time"
)

// Pattern is one discovered co-occurrence of gene categories across the
// cohort. Never mutated after discovery.
type Pattern struct {
	// Name is the rule name the pattern was discovered by.
	Name string `json:"name" yaml:"name"`

	// Categories are the gene categories a sample must carry, all of them,
	// to satisfy the pattern.
	Categories []Category `json:"categories" yaml:"categories"`

	// Severity is the highest tier implied by the constituent categories.
	Severity RiskTier `json:"severity" yaml:"severity"`

	// Count is the number of satisfying samples.
	Count int `json:"count" yaml:"count"`

	// Samples lists the satisfying sample IDs, sorted.
	Samples []string `json:"samples" yaml:"samples"`

	// Note is optional commentary from the rule definition.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}

// GenePrevalence is one row of the gene-centric cohort table.
type GenePrevalence struct {
	// Gene is the canonical gene name.
	Gene string `json:"gene" yaml:"gene"`

	// Category and Tier are copied from the registry definition.
	Category Category `json:"category" yaml:"category"`
	Tier     RiskTier `json:"tier" yaml:"tier"`

	// Count is the number of samples carrying the gene.
	Count int `json:"count" yaml:"count"`

	// Percent is Count over the included sample total, as a percentage.
	Percent float64 `json:"percent" yaml:"percent"`

	// Samples lists the carrier sample IDs, sorted.
	Samples []string `json:"samples" yaml:"samples"`
}

// GenePair counts two canonical genes appearing together in a sample.
type GenePair struct {
	GeneA string `json:"gene_a" yaml:"gene_a"`
	GeneB string `json:"gene_b" yaml:"gene_b"`
	Count int    `json:"count" yaml:"count"`
}

// ExcludedSample records a sample dropped from the cohort and why.
type ExcludedSample struct {
	SampleID string `json:"sample_id" yaml:"sample_id"`
	Reason   string `json:"reason" yaml:"reason"`
}

// Diagnostics aggregates the recoverable problems absorbed during a run.
// The dataset always states how many samples were excluded and why; a
// partial cohort is never presented as complete.
type Diagnostics struct {
	// Excluded lists samples dropped from the cohort with reasons.
	Excluded []ExcludedSample `json:"excluded" yaml:"excluded"`

	// FailedFiles lists result files that could not be parsed, each entry a
	// file name with its error. A failed file does not exclude its sample
	// unless nothing else parsed for it.
	FailedFiles []string `json:"failed_files,omitempty" yaml:"failed_files,omitempty"`

	// UnresolvedGenes counts occurrences of identifiers the registry could
	// not resolve, keyed by the identifier as reported.
	UnresolvedGenes map[string]int `json:"unresolved_genes" yaml:"unresolved_genes"`

	// RejectedHits counts raw hits dropped for failing the identity or
	// coverage threshold.
	RejectedHits int `json:"rejected_hits" yaml:"rejected_hits"`

	// DiscrepantMerges counts merged hits flagged with a tool disagreement.
	DiscrepantMerges int `json:"discrepant_merges" yaml:"discrepant_merges"`

	// ParsedRecords counts raw records ingested per source tool.
	ParsedRecords map[string]int `json:"parsed_records" yaml:"parsed_records"`
}

// CohortDataset is the normalized, gene-centric output of one pipeline run.
// Built once, read-only after assembly, and handed by reference to
// reporting. Nothing in here feeds back into a later run; every run
// rebuilds the dataset from the tool outputs it finds.
type CohortDataset struct {
	// RunID uniquely identifies the pipeline run that built the dataset.
	RunID string `json:"run_id" yaml:"run_id"`

	// CreatedAt is the dataset assembly time.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// TotalSamples counts samples discovered in the input, included or not.
	TotalSamples int `json:"total_samples" yaml:"total_samples"`

	// IncludedSamples counts samples that made it into the cohort.
	IncludedSamples int `json:"included_samples" yaml:"included_samples"`

	// GeneCarriers maps each canonical gene to the sorted sample IDs
	// carrying it.
	GeneCarriers map[string][]string `json:"gene_carriers" yaml:"gene_carriers"`

	// Profiles maps sample ID to its finished profile.
	Profiles map[string]SampleProfile `json:"profiles" yaml:"profiles"`

	// Patterns holds the discovered co-occurrence patterns, ordered by
	// descending severity then descending sample count.
	Patterns []Pattern `json:"patterns" yaml:"patterns"`

	// Prevalence holds the gene-centric table rows, ordered by descending
	// carrier count then gene name.
	Prevalence []GenePrevalence `json:"prevalence" yaml:"prevalence"`

	// TopPairs lists the most frequent same-sample gene pairs.
	TopPairs []GenePair `json:"top_pairs,omitempty" yaml:"top_pairs,omitempty"`

	// CarbapenemaseCombos counts samples per carbapenemase gene combination,
	// keyed by the sorted gene names joined with "+".
	CarbapenemaseCombos map[string]int `json:"carbapenemase_combos,omitempty" yaml:"carbapenemase_combos,omitempty"`

	// STDistribution counts samples per MLST sequence type, when typing
	// metadata was ingested.
	STDistribution map[string]int `json:"st_distribution,omitempty" yaml:"st_distribution,omitempty"`

	// KLocusDistribution counts samples per capsule locus.
	KLocusDistribution map[string]int `json:"k_locus_distribution,omitempty" yaml:"k_locus_distribution,omitempty"`

	// DatabaseCoverage counts canonical hits corroborated per source
	// database across the cohort.
	DatabaseCoverage map[string]int `json:"database_coverage,omitempty" yaml:"database_coverage,omitempty"`

	// Diagnostics reports the recoverable problems absorbed during the run.
	Diagnostics Diagnostics `json:"diagnostics" yaml:"diagnostics"`
}

// SampleIDs returns the included sample identifiers, sorted.
func (d *CohortDataset) SampleIDs() []string {
	ids := make([]string, 0, len(d.Profiles))
	for id := range d.Profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
