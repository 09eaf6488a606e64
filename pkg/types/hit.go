// Copyright Abx Labs Ltd., 2026. All rights reserved.

package types

// RawHit is one detection as reported by a single source tool for a single
// sample, prior to alias resolution or quality filtering. Immutable once
// parsed from the tool's output file.
type RawHit struct {
	// SampleID is the normalized sample identifier the hit belongs to.
	SampleID string `json:"sample_id" yaml:"sample_id"`

	// Tool names the source program that produced the record
	// (e.g. "amrfinder", "abricate").
	Tool string `json:"tool" yaml:"tool"`

	// Gene is the gene identifier exactly as reported, not yet canonicalized.
	Gene string `json:"gene" yaml:"gene"`

	// Identity is the percent identity to the reference sequence (0-100).
	Identity float64 `json:"identity" yaml:"identity"`

	// Coverage is the percent coverage of the reference sequence (0-100).
	Coverage float64 `json:"coverage" yaml:"coverage"`

	// Contig is the assembly contig the hit was located on, if reported.
	Contig string `json:"contig,omitempty" yaml:"contig,omitempty"`

	// Start and End are 1-based coordinates on the contig, if reported.
	Start int `json:"start,omitempty" yaml:"start,omitempty"`
	End   int `json:"end,omitempty" yaml:"end,omitempty"`

	// Database names the reference database for multi-database screeners
	// (e.g. "card", "resfinder", "bacmet2"). Empty for single-database tools.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	// Accession is the reference sequence accession, if reported.
	Accession string `json:"accession,omitempty" yaml:"accession,omitempty"`

	// Product is the free-text product description, if reported. Used as the
	// note on synthesized definitions for unresolved genes.
	Product string `json:"product,omitempty" yaml:"product,omitempty"`
}

// Discrepancy records a disagreement between tools on percent identity for
// the same sample/gene pair that exceeded the configured threshold. It is
// surfaced on the merged hit, never treated as an error.
type Discrepancy struct {
	// Min and Max are the extreme identity values among contributing hits.
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`

	// ByTool maps each contributing tool to the identity it reported.
	// A tool that reported several raw hits contributes its best value.
	ByTool map[string]float64 `json:"by_tool" yaml:"by_tool"`
}

// Spread returns the identity gap between the most and least confident tool.
func (d *Discrepancy) Spread() float64 {
	return d.Max - d.Min
}

// CanonicalHit is the single merged detection for one (sample, canonical
// gene) pair. It owns the raw hits it merged; no RawHit is shared across
// two CanonicalHits.
type CanonicalHit struct {
	// SampleID is the sample the hit belongs to.
	SampleID string `json:"sample_id" yaml:"sample_id"`

	// Gene is the resolved registry definition for the marker.
	Gene GeneDefinition `json:"gene" yaml:"gene"`

	// Identity is the best percent identity among contributing raw hits.
	Identity float64 `json:"identity" yaml:"identity"`

	// Coverage is the best percent coverage among contributing raw hits.
	Coverage float64 `json:"coverage" yaml:"coverage"`

	// Tools is the sorted union of all source tools that reported the gene,
	// regardless of which one supplied the winning numeric values.
	Tools []string `json:"tools" yaml:"tools"`

	// Merged holds the raw hits collapsed into this canonical hit.
	Merged []RawHit `json:"merged,omitempty" yaml:"merged,omitempty"`

	// Discrepancy is set when contributing tools disagreed on identity by
	// more than the configured threshold.
	Discrepancy *Discrepancy `json:"discrepancy,omitempty" yaml:"discrepancy,omitempty"`
}

// Corroborated reports whether more than one tool contributed to the hit.
func (h *CanonicalHit) Corroborated() bool {
	return len(h.Tools) > 1
}

// Typing is optional per-sample typing metadata carried through from the
// typing tools. It never participates in gene merging or risk logic.
type Typing struct {
	// Scheme is the MLST scheme used (e.g. "abaumannii_2" for Pasteur).
	Scheme string `json:"scheme,omitempty" yaml:"scheme,omitempty"`

	// SequenceType is the MLST ST as reported. Kept as a string because
	// tools report non-numeric values such as "-" or "novel".
	SequenceType string `json:"sequence_type,omitempty" yaml:"sequence_type,omitempty"`

	// Alleles maps MLST locus names to the called allele numbers.
	Alleles map[string]string `json:"alleles,omitempty" yaml:"alleles,omitempty"`

	// KLocus is the best-match capsule locus (e.g. "KL3").
	KLocus string `json:"k_locus,omitempty" yaml:"k_locus,omitempty"`

	// KConfidence is the capsule typing match confidence as reported.
	KConfidence string `json:"k_confidence,omitempty" yaml:"k_confidence,omitempty"`

	// OCLocus is the best-match outer-core locus (e.g. "OCL1").
	OCLocus string `json:"oc_locus,omitempty" yaml:"oc_locus,omitempty"`
}
