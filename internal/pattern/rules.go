// Copyright Abx Labs Ltd., 2026. All rights reserved.

package pattern

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/abxlab/amrscope/pkg/types"
)

// Rule declares one co-occurrence to look for across the cohort. A sample
// satisfies the rule when it carries every listed category and, if Flag is
// set, that profile flag too.
type Rule struct {
	Name       string           `yaml:"name"`
	Categories []types.Category `yaml:"categories,omitempty"`
	Flag       string           `yaml:"flag,omitempty"`

	// Severity overrides the derived severity. Required for rules with no
	// categories, since nothing else implies a tier.
	Severity types.RiskTier `yaml:"severity,omitempty"`

	// MinSupport overrides the engine default for this rule.
	MinSupport int    `yaml:"min_support,omitempty"`
	Note       string `yaml:"note,omitempty"`
}

// RulesFile is the on-disk rule set. The researcher edits it without
// touching code; the shipped copy lives in configs/patterns.yaml.
type RulesFile struct {
	// CategoryTiers overrides the registry's category-to-tier mapping when
	// deriving pattern severity. Unlisted categories fall back to the
	// registry.
	CategoryTiers map[types.Category]types.RiskTier `yaml:"category_tiers,omitempty"`

	Rules []Rule `yaml:"rules"`
}

// LoadRules reads and validates a rule file. An empty path yields the
// built-in default rule set.
func LoadRules(path string) (*RulesFile, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	if problems := rf.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid rules file %s: %d problem(s), first: %s", path, len(problems), problems[0])
	}
	return &rf, nil
}

// Validate checks the rule set and returns all problems found, so a
// researcher can fix the file in one pass.
func (f *RulesFile) Validate() []string {
	var problems []string

	for cat, tier := range f.CategoryTiers {
		if _, err := types.ParseRiskTier(string(tier)); err != nil {
			problems = append(problems, fmt.Sprintf("category_tiers[%s]: %v", cat, err))
		}
	}

	seen := make(map[string]bool, len(f.Rules))
	for i, r := range f.Rules {
		where := fmt.Sprintf("rule %d (%s)", i, r.Name)
		if r.Name == "" {
			problems = append(problems, fmt.Sprintf("rule %d: missing name", i))
		} else if seen[r.Name] {
			problems = append(problems, where+": duplicate name")
		}
		seen[r.Name] = true

		if len(r.Categories) == 0 && r.Flag == "" {
			problems = append(problems, where+": needs categories or a flag")
		}
		if len(r.Categories) == 0 && r.Flag != "" && r.Severity == "" {
			problems = append(problems, where+": flag-only rules need an explicit severity")
		}
		if r.Severity != "" {
			if _, err := types.ParseRiskTier(string(r.Severity)); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", where, err))
			}
		}
		for _, c := range r.Categories {
			if c == "" {
				problems = append(problems, where+": empty category")
			}
		}
		if r.MinSupport < 0 {
			problems = append(problems, where+": negative min_support")
		}
	}
	return problems
}

// Defaults returns the built-in rule set, mirroring configs/patterns.yaml.
func Defaults() *RulesFile {
	return &RulesFile{
		Rules: []Rule{
			{
				Name:       "carbapenemase_plus_colistin",
				Categories: []types.Category{types.CategoryCarbapenemase, types.CategoryColistin},
				Note:       "last-line agents compromised together",
			},
			{
				Name:       "carbapenemase_plus_tigecycline",
				Categories: []types.Category{types.CategoryCarbapenemase, types.CategoryTigecycline},
				Note:       "carbapenem and tigecycline resistance in one genome",
			},
			{
				Name:       "carbapenemase_plus_esbl",
				Categories: []types.Category{types.CategoryCarbapenemase, types.CategoryESBL},
				Note:       "broad beta-lactam inactivation",
			},
			{
				Name:       "biocide_metal_coselection",
				Categories: []types.Category{types.CategoryBiocide, types.CategoryMetal},
				Note:       "disinfectant and heavy-metal tolerance travelling together",
			},
			{
				Name:       "virulent_carbapenemase_carrier",
				Categories: []types.Category{types.CategoryVirulence, types.CategoryCarbapenemase},
				Note:       "high-risk convergence of virulence and carbapenem resistance",
			},
			{
				Name:     "multidrug",
				Flag:     types.FlagMultidrug,
				Severity: types.TierHigh,
				Note:     "three or more distinct resistance categories",
			},
		},
	}
}
