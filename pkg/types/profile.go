// Copyright Abx Labs Ltd., 2026. All rights reserved.

package types

// Profile flag names computed by the risk classifier. Flags mark high-value
// findings the pattern engine and reports key on.
const (
	FlagCarbapenemase = "carries_carbapenemase"
	FlagColistin      = "carries_colistin_resistance"
	FlagTigecycline   = "carries_tigecycline_resistance"
	FlagESBL          = "carries_esbl"
	FlagVirulence     = "carries_virulence"
	FlagMobileElement = "carries_mobile_element"

	// FlagMultidrug marks a sample whose hits span at least the configured
	// number of distinct resistance categories.
	FlagMultidrug = "multidrug"
)

// SampleProfile is the finished per-sample view: the merged canonical hits,
// the derived risk tier, and the named category flags. Written once by the
// risk classifier after all hits for the sample are merged; read-only after.
type SampleProfile struct {
	// SampleID is the normalized sample identifier.
	SampleID string `json:"sample_id" yaml:"sample_id"`

	// Hits holds the sample's canonical hits, ordered by descending tier
	// severity then by canonical gene name, so output is deterministic.
	Hits []CanonicalHit `json:"hits" yaml:"hits"`

	// Tier is the highest-severity tier among the sample's hits, or
	// TierNone when the sample has no hits.
	Tier RiskTier `json:"tier" yaml:"tier"`

	// Categories lists the distinct gene categories present, sorted.
	Categories []Category `json:"categories" yaml:"categories"`

	// Flags holds the named boolean findings (see Flag constants).
	Flags map[string]bool `json:"flags" yaml:"flags"`

	// Typing carries optional MLST and capsule typing metadata.
	Typing *Typing `json:"typing,omitempty" yaml:"typing,omitempty"`
}

// HasCategory reports whether any of the sample's hits belongs to c.
func (p *SampleProfile) HasCategory(c Category) bool {
	for _, present := range p.Categories {
		if present == c {
			return true
		}
	}
	return false
}

// GeneNames returns the canonical names of the sample's hits in profile order.
func (p *SampleProfile) GeneNames() []string {
	names := make([]string, len(p.Hits))
	for i, h := range p.Hits {
		names[i] = h.Gene.Canonical
	}
	return names
}
