// Copyright Abx Labs Ltd., 2026. All rights reserved.

// Package cohort turns per-sample raw hits into finished sample profiles:
// normalization against the gene registry, deduplication and merge of
// overlapping calls, and risk classification. Samples are independent; the
// pipeline runs them on a bounded worker pool and joins before the
// cohort-wide phases.
package cohort

import (
	"go.uber.org/zap"

	"github.com/abxlab/amrscope/internal/kb"
	"github.com/abxlab/amrscope/internal/logging"
	"github.com/abxlab/amrscope/pkg/types"
)

// Outcome says what the normalizer did with one raw hit.
type Outcome int

const (
	// Accepted means the hit passed thresholds and carries a resolved or
	// synthesized definition.
	Accepted Outcome = iota

	// RejectedQuality means identity or coverage fell below the minimum.
	RejectedQuality

	// DroppedUnresolved means the identifier resolved nowhere and the
	// policy is to drop such hits.
	DroppedUnresolved
)

// Candidate is a raw hit that passed normalization, paired with its
// resolved definition. Unresolved marks synthesized uncategorized
// definitions so diagnostics can count them.
type Candidate struct {
	Raw        types.RawHit
	Def        types.GeneDefinition
	Unresolved bool
}

// Normalizer resolves gene identifiers and enforces quality thresholds.
type Normalizer struct {
	KB  *kb.KB
	Cfg types.NormalizeConfig
}

// Normalize applies the quality thresholds and the registry to one raw
// hit. Low-quality hits are rejected before resolution so threshold
// rejections never show up as unresolved-gene noise.
func (n *Normalizer) Normalize(raw types.RawHit) (Candidate, Outcome) {
	if raw.Identity < n.Cfg.MinIdentity || raw.Coverage < n.Cfg.MinCoverage {
		return Candidate{}, RejectedQuality
	}

	def, ok := n.KB.Resolve(raw.Gene)
	if ok {
		return Candidate{Raw: raw, Def: def}, Accepted
	}

	if n.Cfg.Unresolved == types.UnresolvedDrop {
		logging.Debug("dropping unresolved gene",
			zap.String("gene", raw.Gene),
			zap.String("sample", raw.SampleID),
			zap.String("tool", raw.Tool))
		return Candidate{}, DroppedUnresolved
	}

	logging.Debug("unresolved gene kept as uncategorized",
		zap.String("gene", raw.Gene),
		zap.String("sample", raw.SampleID),
		zap.String("tool", raw.Tool))
	return Candidate{
		Raw:        raw,
		Def:        synthesizeDefinition(raw),
		Unresolved: true,
	}, Accepted
}

// synthesizeDefinition builds the stand-in definition for an identifier the
// registry does not know: uncategorized, tier LOW, keyed by the reported
// name so repeated reports of the same unknown gene still merge.
func synthesizeDefinition(raw types.RawHit) types.GeneDefinition {
	return types.GeneDefinition{
		Canonical: raw.Gene,
		Category:  types.CategoryUncategorized,
		Tier:      types.TierLow,
		Note:      raw.Product,
	}
}
