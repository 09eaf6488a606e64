// Copyright Abx Labs Ltd., 2026. All rights reserved.

package cohort

import (
	"sort"

	"github.com/abxlab/amrscope/pkg/types"
)

// multidrugCategories are the antibiotic-class categories the multidrug
// flag counts. Intrinsic efflux, biofilm, and the non-antibiotic categories
// stay out.
var multidrugCategories = map[types.Category]bool{
	types.CategoryCarbapenemase:  true,
	types.CategoryESBL:           true,
	types.CategoryAmpC:           true,
	types.CategoryColistin:       true,
	types.CategoryTigecycline:    true,
	types.CategoryAminoglycoside: true,
	types.CategoryEnvironmental:  true,
	types.CategoryOther:          true,
}

// Classifier derives the per-sample risk view from merged hits. Pure and
// order-independent: the same hit set yields an identical profile whatever
// order the hits arrive in.
type Classifier struct {
	Cfg types.ClassifyConfig
}

// Classify assembles the finished profile for one sample.
func (c *Classifier) Classify(sampleID string, hits []types.CanonicalHit, typing *types.Typing) types.SampleProfile {
	ordered := make([]types.CanonicalHit, len(hits))
	copy(ordered, hits)
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := ordered[i].Gene.Tier.Severity(), ordered[j].Gene.Tier.Severity()
		if si != sj {
			return si > sj
		}
		return ordered[i].Gene.Canonical < ordered[j].Gene.Canonical
	})

	tier := types.TierNone
	catSet := make(map[types.Category]bool)
	for _, h := range ordered {
		if h.Gene.Tier.Severity() > tier.Severity() {
			tier = h.Gene.Tier
		}
		catSet[h.Gene.Category] = true
	}

	categories := make([]types.Category, 0, len(catSet))
	resistanceClasses := 0
	for cat := range catSet {
		categories = append(categories, cat)
		if multidrugCategories[cat] {
			resistanceClasses++
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	minClasses := c.Cfg.MultidrugMinCategories
	if minClasses <= 0 {
		minClasses = 3
	}

	flags := map[string]bool{
		types.FlagCarbapenemase: catSet[types.CategoryCarbapenemase],
		types.FlagColistin:      catSet[types.CategoryColistin],
		types.FlagTigecycline:   catSet[types.CategoryTigecycline],
		types.FlagESBL:          catSet[types.CategoryESBL],
		types.FlagVirulence:     catSet[types.CategoryVirulence],
		types.FlagMobileElement: catSet[types.CategoryMobileElement],
		types.FlagMultidrug:     resistanceClasses >= minClasses,
	}

	return types.SampleProfile{
		SampleID:   sampleID,
		Hits:       ordered,
		Tier:       tier,
		Categories: categories,
		Flags:      flags,
		Typing:     typing,
	}
}
