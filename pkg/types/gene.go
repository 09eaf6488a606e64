// Copyright Abx Labs Ltd., 2026. All rights reserved.

// Package types defines shared data structures for the amrscope pipeline:
// the gene registry model, raw and merged detection hits, per-sample
// profiles, and the aggregated cohort dataset handed to reporting.
package types

import "fmt"

// RiskTier is the clinical severity assigned to a gene or a sample.
type RiskTier string

const (
	TierCritical      RiskTier = "CRITICAL"
	TierHigh          RiskTier = "HIGH"
	TierMedium        RiskTier = "MEDIUM"
	TierLow           RiskTier = "LOW"
	TierEnvironmental RiskTier = "ENVIRONMENTAL"

	// TierNone marks a sample with no canonical hits. It is never assigned
	// to a gene.
	TierNone RiskTier = "NONE"
)

// tierSeverity orders tiers from most to least severe. Higher is worse.
var tierSeverity = map[RiskTier]int{
	TierCritical:      5,
	TierHigh:          4,
	TierMedium:        3,
	TierLow:           2,
	TierEnvironmental: 1,
	TierNone:          0,
}

// Severity returns the numeric rank of the tier, higher meaning more severe.
// Unknown tiers rank 0, the same as TierNone.
func (t RiskTier) Severity() int {
	return tierSeverity[t]
}

// Tiers lists all tiers from most to least severe.
func Tiers() []RiskTier {
	return []RiskTier{TierCritical, TierHigh, TierMedium, TierLow, TierEnvironmental, TierNone}
}

// ParseRiskTier validates a tier string from a registry or rules file.
func ParseRiskTier(s string) (RiskTier, error) {
	t := RiskTier(s)
	switch t {
	case TierCritical, TierHigh, TierMedium, TierLow, TierEnvironmental:
		return t, nil
	}
	return "", fmt.Errorf("unknown risk tier %q", s)
}

// Category labels the functional class of a gene. The registry may introduce
// categories beyond the constants below without a code change; the constants
// name the classes referenced by profile flags and the shipped pattern rules.
type Category string

const (
	CategoryCarbapenemase   Category = "carbapenemase"
	CategoryESBL            Category = "esbl"
	CategoryAmpC            Category = "ampc"
	CategoryColistin        Category = "colistin_resistance"
	CategoryTigecycline     Category = "tigecycline_resistance"
	CategoryAminoglycoside  Category = "aminoglycoside_resistance"
	CategoryEfflux          Category = "efflux"
	CategoryBiofilm         Category = "biofilm"
	CategoryBiocide         Category = "biocide_resistance"
	CategoryMetal           Category = "metal_resistance"
	CategoryVirulence       Category = "virulence"
	CategoryMobileElement   Category = "mobile_element"
	CategoryPlasmidReplicon Category = "plasmid_replicon"
	CategoryEnvironmental   Category = "environmental_resistance"
	CategoryOther           Category = "other_resistance"

	// CategoryUncategorized is assigned to hits whose gene resolves nowhere;
	// see the unresolved-gene policy in the normalizer.
	CategoryUncategorized Category = "uncategorized"
)

// GeneDefinition is one entry of the curated gene registry: the canonical
// name for a marker, the aliases it is reported under by the various tools,
// and its curated category and risk tier. Definitions are immutable after
// the registry is loaded.
type GeneDefinition struct {
	// Canonical is the resolved gene name (e.g. "blaOXA-23").
	Canonical string `json:"canonical" yaml:"canonical"`

	// Aliases lists alternative identifiers tools report for this gene.
	// Matching is case-insensitive and format-tolerant; see kb.Resolve.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// Category is the functional class (e.g. "carbapenemase").
	Category Category `json:"category" yaml:"category"`

	// Tier is the curated clinical risk tier.
	Tier RiskTier `json:"tier" yaml:"tier"`

	// Note is optional curator commentary carried through to reports.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}
